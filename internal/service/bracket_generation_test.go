package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/db"
	"github.com/AdamBeresnev/tourney-bot/internal/notify"
	"github.com/AdamBeresnev/tourney-bot/internal/session"
	"github.com/AdamBeresnev/tourney-bot/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = "admin-1"

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(db.MemoryDSN)
	require.NoError(t, err, "Failed to connect to in-memory DB")

	err = db.RunMigrations(database.DB)
	require.NoError(t, err, "Failed to apply migrations")

	return database
}

type recordingNotifier struct {
	mu       sync.Mutex
	received []notify.Message
	failFor  map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[recipientID] {
		return errors.New("recipient unreachable")
	}
	n.received = append(n.received, notify.Message{RecipientID: recipientID, Text: text})
	return nil
}

func (n *recordingNotifier) messagesFor(recipientID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var texts []string
	for _, m := range n.received {
		if m.RecipientID == recipientID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
}

func (p *recordingPublisher) last() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1].(*Snapshot)
}

type fixture struct {
	db           *sqlx.DB
	tournaments  *store.TournamentStore
	participants *store.ParticipantStore
	notifier     *recordingNotifier
	publisher    *recordingPublisher
	tournament   *TournamentService
	matches      *MatchService
	registration *RegistrationService
}

func newFixture(t *testing.T, characters ...string) *fixture {
	t.Helper()

	database := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	sessions := session.NewStore(time.Minute, 0)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{failFor: map[string]bool{}}
	publisher := &recordingPublisher{}
	deps := Deps{
		Dispatcher: notify.NewDispatcher(notifier, logger, 4),
		Publisher:  publisher,
		AdminIDs:   []string{adminID},
		Shuffler:   rand.New(rand.NewPCG(1, 2)),
		Logger:     logger,
	}

	tournaments := store.NewTournamentStore(database)
	participants := store.NewParticipantStore(database)
	return &fixture{
		db:           database,
		tournaments:  tournaments,
		participants: participants,
		notifier:     notifier,
		publisher:    publisher,
		tournament:   NewTournamentService(database, tournaments, participants, deps),
		matches:      NewMatchService(database, tournaments, participants, deps),
		registration: NewRegistrationService(database, tournaments, participants, sessions, characters, deps),
	}
}

// register runs a nickname-only registration to completion.
func (f *fixture) register(t *testing.T, userID, nickname string) *bracket.Participant {
	t.Helper()
	ctx := context.Background()

	_, err := f.registration.Begin(ctx, userID)
	require.NoError(t, err)
	step, err := f.registration.SubmitNickname(ctx, userID, nickname)
	require.NoError(t, err)
	require.Equal(t, session.StateDone, step.State)
	return step.Participant
}

// seed opens registration and registers n players.
func (f *fixture) seed(t *testing.T, n int) []*bracket.Participant {
	t.Helper()
	require.NoError(t, f.tournament.OpenRegistration(context.Background(), adminID))

	players := make([]*bracket.Participant, 0, n)
	for i := range n {
		players = append(players, f.register(t, userName(i), nickName(i)))
	}
	return players
}

func userName(i int) string { return "user-" + string(rune('a'+i)) }
func nickName(i int) string { return "Player " + string(rune('A'+i)) }

func newPool(n int) []uuid.UUID {
	pool := make([]uuid.UUID, n)
	for i := range pool {
		pool[i] = uuid.New()
	}
	return pool
}

func TestGenerateRound_Shape(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for n := 1; n <= 9; n++ {
		pool := newPool(n)
		gen, err := GenerateRound(pool, 3, rng)
		require.NoError(t, err)

		assert.Equal(t, 3, gen.Round)
		assert.Len(t, gen.Matches, (n+1)/2, "n=%d", n)
		assert.Len(t, gen.Pairings, n/2, "n=%d", n)

		seen := map[uuid.UUID]int{}
		byes := 0
		for i, m := range gen.Matches {
			assert.Equal(t, 3, m.RoundNumber)
			assert.Equal(t, i+1, m.MatchOrder)
			seen[m.Player1ID]++
			if m.IsBye {
				byes++
				assert.Nil(t, m.Player2ID)
				assert.Equal(t, bracket.OutcomeWinner, m.Outcome)
				require.NotNil(t, m.WinnerID)
				assert.Equal(t, m.Player1ID, *m.WinnerID)
				assert.Equal(t, len(gen.Matches)-1, i, "bye should be the last match")
				continue
			}
			require.NotNil(t, m.Player2ID)
			seen[*m.Player2ID]++
			assert.Equal(t, bracket.OutcomeUnresolved, m.Outcome)
			assert.Nil(t, m.WinnerID)
		}

		assert.Len(t, seen, n, "every entrant should appear")
		for id, count := range seen {
			assert.Equal(t, 1, count, "entrant %s appears more than once", id)
		}
		if n%2 == 1 {
			assert.Equal(t, 1, byes)
			require.NotNil(t, gen.Bye)
		} else {
			assert.Zero(t, byes)
			assert.Nil(t, gen.Bye)
		}
	}
}

func TestGenerateRound_SingleEntrant(t *testing.T) {
	pool := newPool(1)

	gen, err := GenerateRound(pool, 1, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	assert.Empty(t, gen.Pairings)
	require.NotNil(t, gen.Bye)
	assert.Equal(t, pool[0], *gen.Bye)
	require.Len(t, gen.Matches, 1)
	assert.True(t, gen.Matches[0].IsBye)
}

func TestGenerateRound_InvalidInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := GenerateRound(nil, 1, rng)
	assert.ErrorIs(t, err, ErrEmptyPool)

	_, err = GenerateRound(newPool(2), 0, rng)
	assert.Error(t, err)

	id := uuid.New()
	_, err = GenerateRound([]uuid.UUID{id, uuid.New(), id}, 1, rng)
	assert.Error(t, err)
}

func TestGenerateRound_DoesNotReorderPool(t *testing.T) {
	pool := newPool(6)
	before := slices.Clone(pool)

	_, err := GenerateRound(pool, 1, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, before, pool)
}

func TestGenerateRound_EveryPermutationOccurs(t *testing.T) {
	pool := newPool(3)
	rng := rand.New(rand.NewPCG(42, 42))

	orders := map[[3]uuid.UUID]int{}
	for range 600 {
		gen, err := GenerateRound(pool, 1, rng)
		require.NoError(t, err)
		require.Len(t, gen.Pairings, 1)
		require.NotNil(t, gen.Bye)
		orders[[3]uuid.UUID{gen.Pairings[0].Player1, gen.Pairings[0].Player2, *gen.Bye}]++
	}

	assert.Len(t, orders, 6)
	for order, count := range orders {
		assert.Greater(t, count, 50, "order %v is underrepresented", order)
	}
}
