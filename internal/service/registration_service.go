package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/session"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RegistrationStep is what the caller should see next. Options are the
// characters on offer, numbered from 1 in the order given.
type RegistrationStep struct {
	State       session.State        `json:"state"`
	Nickname    string               `json:"nickname,omitempty"`
	Options     []string             `json:"options,omitempty"`
	Participant *bracket.Participant `json:"participant,omitempty"`
}

// RegistrationService walks one caller at a time through registration.
// Conversation state lives in the session store; only a finished registration
// touches the database.
type RegistrationService struct {
	db           *sqlx.DB
	tournaments  *store.TournamentStore
	participants *store.ParticipantStore
	sessions     *session.Store
	characters   []string
	deps         Deps
	announce     announcer
}

func NewRegistrationService(db *sqlx.DB, tournaments *store.TournamentStore, participants *store.ParticipantStore, sessions *session.Store, characters []string, deps Deps) *RegistrationService {
	deps = deps.withDefaults()
	return &RegistrationService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		sessions:     sessions,
		characters:   characters,
		deps:         deps,
		announce: announcer{
			deps:   deps,
			reader: snapshotReader{db: db, tournaments: tournaments, participants: participants},
		},
	}
}

func (s *RegistrationService) Begin(ctx context.Context, callerID string) (*RegistrationStep, error) {
	status, err := s.tournaments.GetStatus(ctx)
	if err != nil {
		return nil, storageErr("get status", err)
	}
	if !status.RegistrationOpen {
		return nil, ErrRegistrationClosed
	}

	existing, err := s.participants.GetParticipantByUserID(ctx, callerID)
	if err != nil {
		return nil, storageErr("get participant", err)
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	reg := &session.Registration{State: session.StateAwaitingNickname}
	if err := s.sessions.Put(callerID, reg); err != nil {
		return nil, err
	}
	return stepOf(reg), nil
}

// SubmitNickname returns the current step alongside ErrNicknameTaken or
// ErrInvalidNickname so the caller can be prompted again.
func (s *RegistrationService) SubmitNickname(ctx context.Context, callerID string, text string) (*RegistrationStep, error) {
	reg, err := s.load(callerID, session.StateAwaitingNickname)
	if err != nil {
		return nil, err
	}

	nickname := strings.TrimSpace(text)
	if nickname == "" {
		return stepOf(reg), ErrInvalidNickname
	}

	taken, err := s.participants.NicknameExists(ctx, nickname)
	if err != nil {
		return nil, storageErr("check nickname", err)
	}
	if taken {
		return stepOf(reg), ErrNicknameTaken
	}

	status, err := s.tournaments.GetStatus(ctx)
	if err != nil {
		return nil, storageErr("get status", err)
	}
	if !status.RegistrationOpen {
		return s.end(callerID, ErrRegistrationClosed)
	}

	if status.Mode != bracket.ModeNicknameAndCharacter {
		return s.commit(ctx, callerID, nickname, nil)
	}

	options, err := s.availableCharacters(ctx)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return s.end(callerID, ErrNoCharactersAvailable)
	}

	reg = &session.Registration{State: session.StateAwaitingCharacter, Nickname: nickname, Options: options}
	if err := s.sessions.Put(callerID, reg); err != nil {
		return nil, err
	}
	return stepOf(reg), nil
}

// SubmitCharacterChoice takes the 1-based number of a character from the list
// last shown to this caller.
func (s *RegistrationService) SubmitCharacterChoice(ctx context.Context, callerID string, input string) (*RegistrationStep, error) {
	reg, err := s.load(callerID, session.StateAwaitingCharacter)
	if err != nil {
		return nil, err
	}

	index, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || index < 1 || index > len(reg.Options) {
		return stepOf(reg), ErrInvalidSelection
	}

	character := reg.Options[index-1]
	return s.commit(ctx, callerID, reg.Nickname, &character)
}

func (s *RegistrationService) Cancel(ctx context.Context, callerID string) (*RegistrationStep, error) {
	if err := s.sessions.Delete(callerID); err != nil {
		return nil, err
	}
	return &RegistrationStep{State: session.StateCancelled}, nil
}

// commit inserts the participant. The unique constraints decide who wins a
// race for a nickname or character; the loser is sent back a step.
func (s *RegistrationService) commit(ctx context.Context, callerID, nickname string, character *string) (*RegistrationStep, error) {
	p := &bracket.Participant{
		ID:        uuid.New(),
		UserID:    callerID,
		Nickname:  nickname,
		Character: character,
	}

	err := s.insert(ctx, p)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNicknameConflict):
		reg := &session.Registration{State: session.StateAwaitingNickname}
		if err := s.sessions.Put(callerID, reg); err != nil {
			return nil, err
		}
		return stepOf(reg), ErrNicknameTaken
	case errors.Is(err, store.ErrCharacterConflict):
		return s.retryCharacter(ctx, callerID, nickname)
	case errors.Is(err, store.ErrUserConflict):
		return s.end(callerID, ErrAlreadyRegistered)
	case errors.Is(err, ErrRegistrationClosed):
		return s.end(callerID, ErrRegistrationClosed)
	default:
		return nil, err
	}

	if err := s.sessions.Delete(callerID); err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to drop registration session", "caller", callerID, "error", err)
	}
	s.deps.Logger.InfoContext(ctx, "participant registered", "caller", callerID, "nickname", nickname)
	s.announce.refresh(ctx)

	return &RegistrationStep{State: session.StateDone, Nickname: nickname, Participant: p}, nil
}

func (s *RegistrationService) insert(ctx context.Context, p *bracket.Participant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("register participant", err)
	}
	defer tx.Rollback()

	status, err := s.tournaments.GetStatusTx(ctx, tx)
	if err != nil {
		return storageErr("get status", err)
	}
	if !status.RegistrationOpen {
		return ErrRegistrationClosed
	}

	if err := s.participants.CreateParticipant(ctx, tx, p); err != nil {
		if errors.Is(err, store.ErrNicknameConflict) || errors.Is(err, store.ErrCharacterConflict) || errors.Is(err, store.ErrUserConflict) {
			return err
		}
		return storageErr("insert participant", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit participant", err)
	}
	return nil
}

// retryCharacter offers a fresh list after the chosen character was claimed
// by someone else between listing and selection.
func (s *RegistrationService) retryCharacter(ctx context.Context, callerID, nickname string) (*RegistrationStep, error) {
	options, err := s.availableCharacters(ctx)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return s.end(callerID, fmt.Errorf("%w: %w", ErrCharacterTaken, ErrNoCharactersAvailable))
	}

	reg := &session.Registration{State: session.StateAwaitingCharacter, Nickname: nickname, Options: options}
	if err := s.sessions.Put(callerID, reg); err != nil {
		return nil, err
	}
	return stepOf(reg), ErrCharacterTaken
}

func (s *RegistrationService) availableCharacters(ctx context.Context) ([]string, error) {
	taken, err := s.participants.TakenCharacters(ctx)
	if err != nil {
		return nil, storageErr("get taken characters", err)
	}
	available := make([]string, 0, len(s.characters))
	for _, c := range s.characters {
		if !taken[c] {
			available = append(available, c)
		}
	}
	return available, nil
}

func (s *RegistrationService) load(callerID string, want session.State) (*session.Registration, error) {
	reg, err := s.sessions.Get(callerID)
	if err != nil {
		return nil, err
	}
	if reg == nil || reg.State != want {
		return nil, ErrNoRegistrationInProgress
	}
	return reg, nil
}

// end drops the conversation and reports why.
func (s *RegistrationService) end(callerID string, cause error) (*RegistrationStep, error) {
	if err := s.sessions.Delete(callerID); err != nil {
		return nil, err
	}
	return &RegistrationStep{State: session.StateCancelled}, cause
}

func stepOf(reg *session.Registration) *RegistrationStep {
	return &RegistrationStep{State: reg.State, Nickname: reg.Nickname, Options: reg.Options}
}
