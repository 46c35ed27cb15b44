package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db           *sqlx.DB
	tournaments  *store.TournamentStore
	participants *store.ParticipantStore
	deps         Deps
	announce     announcer
}

func NewMatchService(db *sqlx.DB, tournaments *store.TournamentStore, participants *store.ParticipantStore, deps Deps) *MatchService {
	deps = deps.withDefaults()
	return &MatchService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		deps:         deps,
		announce: announcer{
			deps:   deps,
			reader: snapshotReader{db: db, tournaments: tournaments, participants: participants},
		},
	}
}

// Advancement describes what happened when a round completed: either the next
// round was generated or the tournament finished.
type Advancement struct {
	Round      int                  `json:"round"`
	Next       *GeneratedRound      `json:"next,omitempty"`
	Finished   bool                 `json:"finished"`
	Reason     bracket.FinishReason `json:"reason,omitempty"`
	ChampionID *uuid.UUID           `json:"champion_id,omitempty"`
	// Survivor is the lone entrant left by a double disqualification. They are
	// not crowned.
	Survivor *uuid.UUID `json:"survivor_id,omitempty"`
}

type Resolution struct {
	Match       *bracket.Match `json:"match"`
	Advancement *Advancement   `json:"advancement,omitempty"`
}

func (s *MatchService) ResolveWin(ctx context.Context, callerID string, matchID, winnerID uuid.UUID) (*Resolution, error) {
	return s.resolve(ctx, callerID, matchID, func(m *bracket.Match) (bracket.OutcomeKind, *uuid.UUID, error) {
		if m.IsBye || !m.HasPlayer(winnerID) {
			return "", nil, ErrInvalidWinner
		}
		return bracket.OutcomeWinner, &winnerID, nil
	})
}

func (s *MatchService) ResolveDisqualification(ctx context.Context, callerID string, matchID uuid.UUID, dq bracket.Disqualification) (*Resolution, error) {
	return s.resolve(ctx, callerID, matchID, func(m *bracket.Match) (bracket.OutcomeKind, *uuid.UUID, error) {
		if dq.Both() {
			return bracket.OutcomeBothDisqualified, nil, nil
		}
		winner, ok := m.Opponent(*dq.Player)
		if !ok {
			return "", nil, ErrInvalidWinner
		}
		return bracket.OutcomeWinner, &winner, nil
	})
}

type decideFunc func(m *bracket.Match) (bracket.OutcomeKind, *uuid.UUID, error)

// resolve writes the outcome and runs the round completion check in the same
// transaction, so a failure leaves neither behind.
func (s *MatchService) resolve(ctx context.Context, callerID string, matchID uuid.UUID, decide decideFunc) (*Resolution, error) {
	if !s.deps.Privileges.IsPrivileged(callerID) {
		return nil, ErrNotAuthorized
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("resolve match", err)
	}
	defer tx.Rollback()

	match, err := s.tournaments.GetMatchTx(ctx, tx, matchID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, storageErr("get match", err)
	}
	if match.IsResolved() {
		s.deps.Logger.DebugContext(ctx, "match already resolved", "match_id", matchID)
		return nil, ErrAlreadyResolved
	}

	outcome, winnerID, err := decide(match)
	if err != nil {
		return nil, err
	}

	ok, err := s.tournaments.ResolveMatch(ctx, tx, match.ID, outcome, winnerID)
	if err != nil {
		return nil, storageErr("update match", err)
	}
	if !ok {
		s.deps.Logger.DebugContext(ctx, "lost match resolution race", "match_id", matchID)
		return nil, ErrAlreadyResolved
	}
	match.Outcome = outcome
	match.WinnerID = winnerID

	adv, err := s.advance(ctx, tx, match.RoundNumber)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit resolution", err)
	}

	s.deps.Logger.InfoContext(ctx, "match resolved", "match_id", match.ID, "round", match.RoundNumber, "outcome", outcome, "by", callerID)
	s.afterAdvance(ctx, adv)

	return &Resolution{Match: match, Advancement: adv}, nil
}

// AdvanceRound runs the completion check for a round on its own. It is safe to
// call any number of times: once the next round exists or the tournament has
// finished it does nothing and returns nil.
func (s *MatchService) AdvanceRound(ctx context.Context, round int) (*Advancement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("advance round", err)
	}
	defer tx.Rollback()

	adv, err := s.advance(ctx, tx, round)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit advancement", err)
	}

	s.afterAdvance(ctx, adv)
	return adv, nil
}

func (s *MatchService) advance(ctx context.Context, tx *sqlx.Tx, round int) (*Advancement, error) {
	status, err := s.tournaments.GetStatusTx(ctx, tx)
	if err != nil {
		return nil, storageErr("get status", err)
	}
	if status.Finished {
		return nil, nil
	}

	current, err := s.tournaments.CurrentRoundTx(ctx, tx)
	if err != nil {
		return nil, storageErr("get current round", err)
	}
	if current != round {
		return nil, nil
	}

	unresolved, err := s.tournaments.CountUnresolvedTx(ctx, tx, round)
	if err != nil {
		return nil, storageErr("count unresolved matches", err)
	}
	if unresolved > 0 {
		return nil, nil
	}

	matches, err := s.tournaments.GetRoundMatchesTx(ctx, tx, round)
	if err != nil {
		return nil, storageErr("get round matches", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	var winners []uuid.UUID
	doubleDQ := false
	for _, m := range matches {
		if m.Outcome == bracket.OutcomeBothDisqualified {
			doubleDQ = true
			continue
		}
		if w, ok := m.Winner(); ok {
			winners = append(winners, w)
		}
	}

	adv := &Advancement{Round: round}
	switch {
	case len(winners) == 0:
		adv.Finished, adv.Reason = true, bracket.FinishNoEntrants
	case len(winners) == 1 && doubleDQ:
		adv.Finished, adv.Reason = true, bracket.FinishDoubleDisqualification
		adv.Survivor = &winners[0]
	case len(winners) == 1:
		adv.Finished, adv.Reason = true, bracket.FinishChampion
		adv.ChampionID = &winners[0]
	}

	if adv.Finished {
		if err := s.tournaments.FinishTournament(ctx, tx, adv.ChampionID, adv.Reason); err != nil {
			return nil, storageErr("finish tournament", err)
		}
		return adv, nil
	}

	if err := s.tournaments.CreateRound(ctx, tx, round+1); err != nil {
		if errors.Is(err, store.ErrRoundExists) {
			return nil, nil
		}
		return nil, storageErr("create round", err)
	}

	gen, err := GenerateRound(winners, round+1, s.deps.Shuffler)
	if err != nil {
		return nil, fmt.Errorf("generate round %d: %w", round+1, err)
	}
	if err := s.tournaments.CreateMatches(ctx, tx, gen.Matches); err != nil {
		return nil, storageErr("create matches", err)
	}

	adv.Next = gen
	return adv, nil
}

func (s *MatchService) afterAdvance(ctx context.Context, adv *Advancement) {
	switch {
	case adv == nil:
		s.announce.refresh(ctx)
	case adv.Finished:
		s.deps.Logger.InfoContext(ctx, "tournament finished", "round", adv.Round, "reason", adv.Reason)
		s.announce.finish(ctx, adv)
	default:
		s.deps.Logger.InfoContext(ctx, "round generated", "round", adv.Next.Round, "matches", len(adv.Next.Matches))
		s.announce.round(ctx, adv.Next)
	}
}
