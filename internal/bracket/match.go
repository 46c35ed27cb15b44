package bracket

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind tags how a match ended. A winner id is only meaningful for OutcomeWinner.
type OutcomeKind string

const (
	OutcomeUnresolved       OutcomeKind = "unresolved"
	OutcomeWinner           OutcomeKind = "winner"
	OutcomeBothDisqualified OutcomeKind = "both_disqualified"
)

type Match struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RoundNumber int       `db:"round_number" json:"round"`
	MatchOrder  int       `db:"match_order" json:"order"`

	Player1ID uuid.UUID  `db:"player_1_id" json:"player_1_id"`
	Player2ID *uuid.UUID `db:"player_2_id" json:"player_2_id,omitempty"`
	IsBye     bool       `db:"is_bye" json:"is_bye"`

	Outcome  OutcomeKind `db:"outcome" json:"outcome"`
	WinnerID *uuid.UUID  `db:"winner_id" json:"winner_id,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

func (m *Match) IsResolved() bool {
	return m.Outcome != OutcomeUnresolved
}

// Winner returns the advancing participant, if any.
func (m *Match) Winner() (uuid.UUID, bool) {
	if m.Outcome != OutcomeWinner || m.WinnerID == nil {
		return uuid.Nil, false
	}
	return *m.WinnerID, true
}

func (m *Match) HasPlayer(id uuid.UUID) bool {
	return m.Player1ID == id || (m.Player2ID != nil && *m.Player2ID == id)
}

// Opponent returns the other player of a non-bye match.
func (m *Match) Opponent(id uuid.UUID) (uuid.UUID, bool) {
	if m.Player2ID == nil {
		return uuid.Nil, false
	}
	switch id {
	case m.Player1ID:
		return *m.Player2ID, true
	case *m.Player2ID:
		return m.Player1ID, true
	}
	return uuid.Nil, false
}

// Disqualification names who is removed from a match: one player, or both.
type Disqualification struct {
	Player *uuid.UUID
}

func DisqualifyPlayer(id uuid.UUID) Disqualification {
	return Disqualification{Player: &id}
}

func DisqualifyBoth() Disqualification {
	return Disqualification{}
}

func (d Disqualification) Both() bool {
	return d.Player == nil
}
