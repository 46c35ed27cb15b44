package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/tourney-bot/internal/config"
	"github.com/AdamBeresnev/tourney-bot/internal/db"
	"github.com/AdamBeresnev/tourney-bot/internal/live"
	"github.com/AdamBeresnev/tourney-bot/internal/middleware"
	"github.com/AdamBeresnev/tourney-bot/internal/notify"
	"github.com/AdamBeresnev/tourney-bot/internal/service"
	"github.com/AdamBeresnev/tourney-bot/internal/session"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	database, err := db.Open(db.DSN(cfg.DatabasePath))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.NATSURL != "" {
		natsNotifier, err := notify.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			logger.Error("failed to connect notifier", "error", err)
			os.Exit(1)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
		logger.Info("publishing notifications to NATS", "prefix", cfg.NATSSubjectPrefix)
	}

	sessions := session.NewStore(cfg.SessionTTL, cfg.SessionCleanupInterval)
	defer sessions.Close()

	hub := live.NewHub(logger)
	admins := middleware.NewAdminSet(cfg.AdminIDs)
	if len(admins) == 0 {
		logger.Warn("ADMIN_IDS is empty, admin operations are disabled")
	}

	deps := service.Deps{
		Privileges: admins,
		Dispatcher: notify.NewDispatcher(notifier, logger, cfg.NotifyConcurrency),
		Publisher:  hub,
		AdminIDs:   admins.IDs(),
		Logger:     logger,
	}

	tournaments := store.NewTournamentStore(database)
	participants := store.NewParticipantStore(database)
	app := &application{
		tournament:   service.NewTournamentService(database, tournaments, participants, deps),
		matches:      service.NewMatchService(database, tournaments, participants, deps),
		registration: service.NewRegistrationService(database, tournaments, participants, sessions, cfg.Characters, deps),
		admins:       admins,
		hub:          hub,
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newRouter(app, cfg.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}
	logger.Info("server stopped")
}
