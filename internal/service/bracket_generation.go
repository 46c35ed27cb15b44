package service

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/utils"
	"github.com/google/uuid"
)

// Shuffler permutes n elements. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

type Pairing struct {
	MatchID uuid.UUID `json:"match_id"`
	Player1 uuid.UUID `json:"player_1_id"`
	Player2 uuid.UUID `json:"player_2_id"`
}

type GeneratedRound struct {
	Round    int             `json:"round"`
	Matches  []bracket.Match `json:"matches"`
	Pairings []Pairing       `json:"pairings"`
	Bye      *uuid.UUID      `json:"bye,omitempty"`
}

// GenerateRound shuffles the pool and pairs it off. With an odd pool the last
// entrant after shuffling gets the round's only bye, which is resolved in their
// favour immediately.
func GenerateRound(pool []uuid.UUID, round int, shuffler Shuffler) (*GeneratedRound, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	if round < 1 {
		return nil, fmt.Errorf("invalid round number %d", round)
	}

	seen := make(map[uuid.UUID]bool, len(pool))
	for _, id := range pool {
		if seen[id] {
			return nil, fmt.Errorf("entrant %s appears twice in round %d", id, round)
		}
		seen[id] = true
	}

	order := slices.Clone(pool)
	shuffler.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var bye *uuid.UUID
	if len(order)%2 != 0 {
		last := order[len(order)-1]
		bye = &last
		order = order[:len(order)-1]
	}

	gen := &GeneratedRound{
		Round:    round,
		Matches:  make([]bracket.Match, 0, len(order)/2+1),
		Pairings: make([]Pairing, 0, len(order)/2),
		Bye:      bye,
	}

	for i := 0; i < len(order); i += 2 {
		m := bracket.Match{
			ID:          uuid.New(),
			RoundNumber: round,
			MatchOrder:  len(gen.Matches) + 1,
			Player1ID:   order[i],
			Player2ID:   utils.Ptr(order[i+1]),
			Outcome:     bracket.OutcomeUnresolved,
		}
		gen.Matches = append(gen.Matches, m)
		gen.Pairings = append(gen.Pairings, Pairing{MatchID: m.ID, Player1: m.Player1ID, Player2: *m.Player2ID})
	}

	if bye != nil {
		gen.Matches = append(gen.Matches, bracket.Match{
			ID:          uuid.New(),
			RoundNumber: round,
			MatchOrder:  len(gen.Matches) + 1,
			Player1ID:   *bye,
			IsBye:       true,
			Outcome:     bracket.OutcomeWinner,
			WinnerID:    bye,
		})
	}

	return gen, nil
}
