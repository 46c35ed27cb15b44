package store

import (
	"context"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const matchColumns = "id, round_number, match_order, player_1_id, player_2_id, is_bye, outcome, winner_id, created_at, resolved_at"

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) GetStatus(ctx context.Context) (*bracket.TournamentStatus, error) {
	return getStatus(ctx, s.db)
}

func (s *TournamentStore) GetStatusTx(ctx context.Context, tx *sqlx.Tx) (*bracket.TournamentStatus, error) {
	return getStatus(ctx, tx)
}

func getStatus(ctx context.Context, q sqlx.QueryerContext) (*bracket.TournamentStatus, error) {
	var status bracket.TournamentStatus
	err := sqlx.GetContext(ctx, q, &status, `SELECT registration_open, mode, finished, champion_id, finish_reason
		FROM tournament_status WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *TournamentStore) SetRegistrationOpen(ctx context.Context, tx *sqlx.Tx, open bool) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournament_status SET registration_open = ? WHERE id = 1", open)
	return err
}

func (s *TournamentStore) SetMode(ctx context.Context, tx *sqlx.Tx, mode bracket.RegistrationMode) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournament_status SET mode = ? WHERE id = 1", mode)
	return err
}

func (s *TournamentStore) FinishTournament(ctx context.Context, tx *sqlx.Tx, championID *uuid.UUID, reason bracket.FinishReason) error {
	_, err := tx.ExecContext(ctx, "UPDATE tournament_status SET finished = 1, champion_id = ?, finish_reason = ? WHERE id = 1", championID, reason)
	return err
}

// CreateRound claims a round number. ErrRoundExists means another caller
// already generated it.
func (s *TournamentStore) CreateRound(ctx context.Context, tx *sqlx.Tx, round int) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO rounds (round_number) VALUES (?)", round)
	return constraintError(err)
}

func (s *TournamentStore) CurrentRound(ctx context.Context) (int, error) {
	return currentRound(ctx, s.db)
}

func (s *TournamentStore) CurrentRoundTx(ctx context.Context, tx *sqlx.Tx) (int, error) {
	return currentRound(ctx, tx)
}

func currentRound(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var round int
	err := sqlx.GetContext(ctx, q, &round, "SELECT COALESCE(MAX(round_number), 0) FROM rounds")
	return round, err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, round_number, match_order, player_1_id, player_2_id, is_bye, outcome, winner_id)
		VALUES (:id, :round_number, :match_order, :player_1_id, :player_2_id, :is_bye, :outcome, :winner_id)`, matches)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id string) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id string) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, id string) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context) ([]bracket.Match, error) {
	return listMatches(ctx, s.db)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx) ([]bracket.Match, error) {
	return listMatches(ctx, tx)
}

func listMatches(ctx context.Context, q sqlx.QueryerContext) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, q, &matches, "SELECT "+matchColumns+" FROM matches ORDER BY round_number ASC, match_order ASC")
	return matches, err
}

func (s *TournamentStore) GetRoundMatchesTx(ctx context.Context, tx *sqlx.Tx, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := tx.SelectContext(ctx, &matches, "SELECT "+matchColumns+" FROM matches WHERE round_number = ? ORDER BY match_order ASC", round)
	return matches, err
}

func (s *TournamentStore) CountUnresolvedTx(ctx context.Context, tx *sqlx.Tx, round int) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM matches WHERE round_number = ? AND is_bye = 0 AND outcome = ?", round, bracket.OutcomeUnresolved)
	return n, err
}

// ResolveMatch writes an outcome only if the match is still unresolved. It
// reports false when another resolution got there first.
func (s *TournamentStore) ResolveMatch(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, outcome bracket.OutcomeKind, winnerID *uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE matches SET outcome = ?, winner_id = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND outcome = ?`, outcome, winnerID, id, bracket.OutcomeUnresolved)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetLatestMatchForParticipant returns the participant's match in the latest
// round they played, or nil if they never played.
func (s *TournamentStore) GetLatestMatchForParticipant(ctx context.Context, participantID uuid.UUID) (*bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT "+matchColumns+` FROM matches
		WHERE player_1_id = ? OR player_2_id = ?
		ORDER BY round_number DESC LIMIT 1`, participantID, participantID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// Reset removes every participant, round and match and puts the status row
// back to closed registration in nickname mode.
func (s *TournamentStore) Reset(ctx context.Context, tx *sqlx.Tx) error {
	stmts := []string{
		"DELETE FROM matches",
		"DELETE FROM rounds",
		"DELETE FROM participants",
		`UPDATE tournament_status SET registration_open = 0, mode = 'nickname', finished = 0,
			champion_id = NULL, finish_reason = '' WHERE id = 1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
