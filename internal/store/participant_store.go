package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/jmoiron/sqlx"
)

const (
	participantColumns = "id, user_id, nickname, character_name, created_at"

	getParticipantByUserQuery = "SELECT " + participantColumns + " FROM participants WHERE user_id = ?"
	listParticipantsQuery     = "SELECT " + participantColumns + " FROM participants ORDER BY created_at ASC, rowid ASC"
	nicknameExistsQuery       = "SELECT EXISTS(SELECT 1 FROM participants WHERE nickname = ?)"
	takenCharactersQuery      = "SELECT character_name FROM participants WHERE character_name IS NOT NULL"
	countParticipantsQuery    = "SELECT COUNT(*) FROM participants"
	createParticipantQuery    = `
		INSERT INTO participants (id, user_id, nickname, character_name) VALUES
		(:id, :user_id, :nickname, :character_name)
	`
)

type ParticipantStore struct {
	db *sqlx.DB
}

func NewParticipantStore(db *sqlx.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// GetParticipantByUserID returns nil without error when the user has not registered.
func (s *ParticipantStore) GetParticipantByUserID(ctx context.Context, userID string) (*bracket.Participant, error) {
	var p bracket.Participant
	err := s.db.GetContext(ctx, &p, getParticipantByUserQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ParticipantStore) GetParticipants(ctx context.Context) ([]bracket.Participant, error) {
	return s.listParticipants(ctx, s.db)
}

func (s *ParticipantStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx) ([]bracket.Participant, error) {
	return s.listParticipants(ctx, tx)
}

func (s *ParticipantStore) listParticipants(ctx context.Context, q sqlx.QueryerContext) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := sqlx.SelectContext(ctx, q, &participants, listParticipantsQuery)
	return participants, err
}

func (s *ParticipantStore) CountParticipants(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, countParticipantsQuery)
	return n, err
}

func (s *ParticipantStore) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, nicknameExistsQuery, nickname)
	return exists, err
}

func (s *ParticipantStore) TakenCharacters(ctx context.Context) (map[string]bool, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, takenCharactersQuery); err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	return taken, nil
}

// CreateParticipant relies on the table's unique constraints; a collision comes
// back as ErrNicknameConflict, ErrCharacterConflict or ErrUserConflict.
func (s *ParticipantStore) CreateParticipant(ctx context.Context, tx *sqlx.Tx, p *bracket.Participant) error {
	_, err := tx.NamedExecContext(ctx, createParticipantQuery, p)
	return constraintError(err)
}
