package service

import (
	"context"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const SnapshotEvent = "bracket"

type MatchView struct {
	bracket.Match
	Player1 string `json:"player_1"`
	Player2 string `json:"player_2,omitempty"`
	Winner  string `json:"winner,omitempty"`
}

type RoundView struct {
	Number   int         `json:"number"`
	Complete bool        `json:"complete"`
	Matches  []MatchView `json:"matches"`
}

type Snapshot struct {
	Phase        bracket.Phase            `json:"phase"`
	Status       bracket.TournamentStatus `json:"status"`
	CurrentRound int                      `json:"current_round"`
	Champion     string                   `json:"champion,omitempty"`
	Participants []bracket.Participant    `json:"participants"`
	Rounds       []RoundView              `json:"rounds"`
}

// snapshotReader builds consistent bracket views inside a single transaction.
type snapshotReader struct {
	db           *sqlx.DB
	tournaments  *store.TournamentStore
	participants *store.ParticipantStore
}

func (r snapshotReader) load(ctx context.Context) (*Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("load bracket", err)
	}
	defer tx.Rollback()

	status, err := r.tournaments.GetStatusTx(ctx, tx)
	if err != nil {
		return nil, storageErr("load status", err)
	}
	participants, err := r.participants.GetParticipantsTx(ctx, tx)
	if err != nil {
		return nil, storageErr("load participants", err)
	}
	matches, err := r.tournaments.GetMatchesTx(ctx, tx)
	if err != nil {
		return nil, storageErr("load matches", err)
	}
	current, err := r.tournaments.CurrentRoundTx(ctx, tx)
	if err != nil {
		return nil, storageErr("load current round", err)
	}

	nicknames := nicknameIndex(participants)
	snapshot := &Snapshot{
		Phase:        bracket.PhaseOf(*status, len(participants), current),
		Status:       *status,
		CurrentRound: current,
		Participants: participants,
		Rounds:       []RoundView{},
	}
	if status.ChampionID != nil {
		snapshot.Champion = nicknames[*status.ChampionID]
	}
	if snapshot.Participants == nil {
		snapshot.Participants = []bracket.Participant{}
	}

	for _, m := range matches {
		if len(snapshot.Rounds) == 0 || snapshot.Rounds[len(snapshot.Rounds)-1].Number != m.RoundNumber {
			snapshot.Rounds = append(snapshot.Rounds, RoundView{Number: m.RoundNumber, Complete: true})
		}
		rv := &snapshot.Rounds[len(snapshot.Rounds)-1]
		if !m.IsResolved() {
			rv.Complete = false
		}
		rv.Matches = append(rv.Matches, newMatchView(m, nicknames))
	}

	return snapshot, nil
}

func nicknameIndex(participants []bracket.Participant) map[uuid.UUID]string {
	index := make(map[uuid.UUID]string, len(participants))
	for _, p := range participants {
		index[p.ID] = p.Nickname
	}
	return index
}

func newMatchView(m bracket.Match, nicknames map[uuid.UUID]string) MatchView {
	view := MatchView{Match: m, Player1: nicknames[m.Player1ID]}
	if m.Player2ID != nil {
		view.Player2 = nicknames[*m.Player2ID]
	}
	if winner, ok := m.Winner(); ok {
		view.Winner = nicknames[winner]
	}
	return view
}
