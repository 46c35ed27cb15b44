package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/notify"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	db           *sqlx.DB
	tournaments  *store.TournamentStore
	participants *store.ParticipantStore
	deps         Deps
	reader       snapshotReader
	announce     announcer
}

func NewTournamentService(db *sqlx.DB, tournaments *store.TournamentStore, participants *store.ParticipantStore, deps Deps) *TournamentService {
	deps = deps.withDefaults()
	reader := snapshotReader{db: db, tournaments: tournaments, participants: participants}
	return &TournamentService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		deps:         deps,
		reader:       reader,
		announce:     announcer{deps: deps, reader: reader},
	}
}

func (s *TournamentService) authorize(callerID string) error {
	if !s.deps.Privileges.IsPrivileged(callerID) {
		return ErrNotAuthorized
	}
	return nil
}

// inTx runs fn in a transaction and maps storage failures. Domain errors from
// fn are returned unchanged.
func (s *TournamentService) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// ensureNotStarted fails once round 1 exists or a finished tournament is
// waiting for a reset.
func (s *TournamentService) ensureNotStarted(ctx context.Context, tx *sqlx.Tx) error {
	status, err := s.tournaments.GetStatusTx(ctx, tx)
	if err != nil {
		return storageErr("get status", err)
	}
	current, err := s.tournaments.CurrentRoundTx(ctx, tx)
	if err != nil {
		return storageErr("get current round", err)
	}
	if status.Finished || current > 0 {
		return ErrTournamentAlreadyStarted
	}
	return nil
}

func (s *TournamentService) OpenRegistration(ctx context.Context, callerID string) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}
	err := s.inTx(ctx, "open registration", func(tx *sqlx.Tx) error {
		if err := s.ensureNotStarted(ctx, tx); err != nil {
			return err
		}
		if err := s.tournaments.SetRegistrationOpen(ctx, tx, true); err != nil {
			return storageErr("open registration", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deps.Logger.InfoContext(ctx, "registration opened", "by", callerID)
	s.announce.refresh(ctx)
	return nil
}

func (s *TournamentService) CloseRegistration(ctx context.Context, callerID string) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}
	err := s.inTx(ctx, "close registration", func(tx *sqlx.Tx) error {
		if err := s.tournaments.SetRegistrationOpen(ctx, tx, false); err != nil {
			return storageErr("close registration", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deps.Logger.InfoContext(ctx, "registration closed", "by", callerID)
	s.announce.refresh(ctx)
	return nil
}

func (s *TournamentService) SetMode(ctx context.Context, callerID string, mode bracket.RegistrationMode) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	err := s.inTx(ctx, "set mode", func(tx *sqlx.Tx) error {
		if err := s.ensureNotStarted(ctx, tx); err != nil {
			return err
		}
		if err := s.tournaments.SetMode(ctx, tx, mode); err != nil {
			return storageErr("set mode", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deps.Logger.InfoContext(ctx, "registration mode changed", "mode", mode, "by", callerID)
	return nil
}

// Start closes registration and generates round 1 from every participant.
func (s *TournamentService) Start(ctx context.Context, callerID string) (*GeneratedRound, error) {
	if err := s.authorize(callerID); err != nil {
		return nil, err
	}

	var gen *GeneratedRound
	err := s.inTx(ctx, "start tournament", func(tx *sqlx.Tx) error {
		if err := s.ensureNotStarted(ctx, tx); err != nil {
			return err
		}

		participants, err := s.participants.GetParticipantsTx(ctx, tx)
		if err != nil {
			return storageErr("get participants", err)
		}
		if len(participants) < 2 {
			return ErrInsufficientParticipants
		}

		if err := s.tournaments.CreateRound(ctx, tx, 1); err != nil {
			if errors.Is(err, store.ErrRoundExists) {
				return ErrTournamentAlreadyStarted
			}
			return storageErr("create round", err)
		}
		if err := s.tournaments.SetRegistrationOpen(ctx, tx, false); err != nil {
			return storageErr("close registration", err)
		}

		pool := make([]uuid.UUID, 0, len(participants))
		for _, p := range participants {
			pool = append(pool, p.ID)
		}
		gen, err = GenerateRound(pool, 1, s.deps.Shuffler)
		if err != nil {
			return fmt.Errorf("generate round 1: %w", err)
		}
		if err := s.tournaments.CreateMatches(ctx, tx, gen.Matches); err != nil {
			return storageErr("create matches", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "tournament started", "matches", len(gen.Matches), "by", callerID)
	s.announce.round(ctx, gen)
	return gen, nil
}

// Reset wipes participants, rounds and matches and returns the status to
// closed registration in nickname mode.
func (s *TournamentService) Reset(ctx context.Context, callerID string) error {
	if err := s.authorize(callerID); err != nil {
		return err
	}
	err := s.inTx(ctx, "reset tournament", func(tx *sqlx.Tx) error {
		if err := s.tournaments.Reset(ctx, tx); err != nil {
			return storageErr("reset tournament", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deps.Logger.InfoContext(ctx, "tournament reset", "by", callerID)
	s.announce.refresh(ctx)
	return nil
}

func (s *TournamentService) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.reader.load(ctx)
}

type ParticipantStatus struct {
	Participant bracket.Participant `json:"participant"`
	// Match is the participant's match in the latest round they played.
	Match *MatchView `json:"match,omitempty"`
	// Active is true while that match still waits for a result.
	Active   bool   `json:"active"`
	Opponent string `json:"opponent,omitempty"`
}

func (s *TournamentService) CurrentMatch(ctx context.Context, callerID string) (*ParticipantStatus, error) {
	participant, err := s.participants.GetParticipantByUserID(ctx, callerID)
	if err != nil {
		return nil, storageErr("get participant", err)
	}
	if participant == nil {
		return nil, ErrNotRegistered
	}

	result := &ParticipantStatus{Participant: *participant}

	match, err := s.tournaments.GetLatestMatchForParticipant(ctx, participant.ID)
	if err != nil {
		return nil, storageErr("get match", err)
	}
	if match == nil {
		return result, nil
	}

	participants, err := s.participants.GetParticipants(ctx)
	if err != nil {
		return nil, storageErr("get participants", err)
	}
	nicknames := nicknameIndex(participants)

	view := newMatchView(*match, nicknames)
	result.Match = &view
	result.Active = !match.IsResolved()
	if opponent, ok := match.Opponent(participant.ID); ok {
		result.Opponent = nicknames[opponent]
	}
	return result, nil
}

// Broadcast sends an announcement to every registered participant.
func (s *TournamentService) Broadcast(ctx context.Context, callerID string, text string) (notify.Result, error) {
	if err := s.authorize(callerID); err != nil {
		return notify.Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return notify.Result{}, ErrEmptyMessage
	}

	participants, err := s.participants.GetParticipants(ctx)
	if err != nil {
		return notify.Result{}, storageErr("get participants", err)
	}

	messages := make([]notify.Message, 0, len(participants))
	for _, p := range participants {
		messages = append(messages, notify.Message{RecipientID: p.UserID, Text: "Announcement from the organizers:\n\n" + text})
	}

	result := s.deps.Dispatcher.Send(ctx, messages)
	s.deps.Logger.InfoContext(ctx, "broadcast sent", "sent", result.Sent, "failed", result.Failed, "by", callerID)
	return result, nil
}
