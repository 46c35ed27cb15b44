package service

import (
	"log/slog"

	"github.com/AdamBeresnev/tourney-bot/internal/middleware"
	"github.com/AdamBeresnev/tourney-bot/internal/notify"
)

// Publisher receives bracket updates for spectators.
type Publisher interface {
	Publish(eventType string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

// Deps are the collaborators shared by the services. Zero values fall back to
// harmless defaults: nobody is privileged, notifications are only logged.
type Deps struct {
	Privileges middleware.Privileges
	Dispatcher *notify.Dispatcher
	Publisher  Publisher
	AdminIDs   []string
	Shuffler   Shuffler
	Logger     *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Privileges == nil {
		d.Privileges = middleware.NewAdminSet(d.AdminIDs)
	}
	if d.Dispatcher == nil {
		d.Dispatcher = notify.NewDispatcher(notify.NewLogNotifier(d.Logger), d.Logger, 1)
	}
	if d.Publisher == nil {
		d.Publisher = noopPublisher{}
	}
	if d.Shuffler == nil {
		d.Shuffler = globalShuffler{}
	}
	return d
}
