package service

import (
	"context"
	"sync"
	"testing"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundMatches(t *testing.T, f *fixture, round int) []bracket.Match {
	t.Helper()
	all, err := f.tournaments.GetMatches(context.Background())
	require.NoError(t, err)

	var matches []bracket.Match
	for _, m := range all {
		if m.RoundNumber == round {
			matches = append(matches, m)
		}
	}
	return matches
}

func entrants(matches []bracket.Match) int {
	n := 0
	for _, m := range matches {
		n++
		if m.Player2ID != nil {
			n++
		}
	}
	return n
}

func TestResolveWin_AdvancesToChampion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 4)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	round1 := roundMatches(t, f, 1)
	require.Len(t, round1, 2)

	first, err := f.matches.ResolveWin(ctx, adminID, round1[0].ID, round1[0].Player1ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.OutcomeWinner, first.Match.Outcome)
	assert.Nil(t, first.Advancement, "round is not complete yet")
	assert.Empty(t, roundMatches(t, f, 2))

	second, err := f.matches.ResolveWin(ctx, adminID, round1[1].ID, *round1[1].Player2ID)
	require.NoError(t, err)
	require.NotNil(t, second.Advancement)
	require.NotNil(t, second.Advancement.Next)
	assert.False(t, second.Advancement.Finished)

	round2 := roundMatches(t, f, 2)
	require.Len(t, round2, 1)
	final := round2[0]
	assert.ElementsMatch(t,
		[]uuid.UUID{round1[0].Player1ID, *round1[1].Player2ID},
		[]uuid.UUID{final.Player1ID, *final.Player2ID})

	res, err := f.matches.ResolveWin(ctx, adminID, final.ID, final.Player1ID)
	require.NoError(t, err)
	require.NotNil(t, res.Advancement)
	assert.True(t, res.Advancement.Finished)
	assert.Equal(t, bracket.FinishChampion, res.Advancement.Reason)
	require.NotNil(t, res.Advancement.ChampionID)
	assert.Equal(t, final.Player1ID, *res.Advancement.ChampionID)

	status, err := f.tournaments.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Finished)
	require.NotNil(t, status.ChampionID)
	assert.Equal(t, final.Player1ID, *status.ChampionID)
	assert.NotEmpty(t, f.notifier.messagesFor(adminID))
}

func TestFiveEntrants_ReduceToOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 5)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	var sizes []int
	for round := 1; ; round++ {
		matches := roundMatches(t, f, round)
		require.NotEmpty(t, matches, "round %d was not generated", round)
		sizes = append(sizes, entrants(matches))

		var last *Resolution
		for _, m := range matches {
			if m.IsResolved() {
				continue
			}
			last, err = f.matches.ResolveWin(ctx, adminID, m.ID, *m.Player2ID)
			require.NoError(t, err)
		}
		require.NotNil(t, last)
		require.NotNil(t, last.Advancement)
		if last.Advancement.Finished {
			assert.Equal(t, bracket.FinishChampion, last.Advancement.Reason)
			break
		}
	}

	assert.Equal(t, []int{5, 3, 2}, sizes)

	snapshot, err := f.tournament.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseFinished, snapshot.Phase)
	assert.NotEmpty(t, snapshot.Champion)
	assert.Len(t, snapshot.Rounds, 3)
	for _, r := range snapshot.Rounds {
		assert.True(t, r.Complete)
	}
}

func TestResolve_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 3)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	matches := roundMatches(t, f, 1)
	require.Len(t, matches, 2)
	played, bye := matches[0], matches[1]
	require.True(t, bye.IsBye)

	_, err = f.matches.ResolveWin(ctx, userName(0), played.ID, played.Player1ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.matches.ResolveWin(ctx, adminID, uuid.New(), played.Player1ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = f.matches.ResolveWin(ctx, adminID, played.ID, bye.Player1ID)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	_, err = f.matches.ResolveDisqualification(ctx, adminID, played.ID, bracket.DisqualifyPlayer(bye.Player1ID))
	assert.ErrorIs(t, err, ErrInvalidWinner)

	_, err = f.matches.ResolveWin(ctx, adminID, bye.ID, bye.Player1ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	_, err = f.matches.ResolveWin(ctx, adminID, played.ID, played.Player1ID)
	require.NoError(t, err)

	_, err = f.matches.ResolveWin(ctx, adminID, played.ID, *played.Player2ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	stored, err := f.tournaments.GetMatch(ctx, played.ID.String())
	require.NoError(t, err)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, played.Player1ID, *stored.WinnerID, "outcome must not change once written")
}

func TestResolveDisqualification_OpponentWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 2)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	match := roundMatches(t, f, 1)[0]
	res, err := f.matches.ResolveDisqualification(ctx, adminID, match.ID, bracket.DisqualifyPlayer(match.Player1ID))
	require.NoError(t, err)

	winner, ok := res.Match.Winner()
	require.True(t, ok)
	assert.Equal(t, *match.Player2ID, winner)
	require.NotNil(t, res.Advancement)
	assert.Equal(t, bracket.FinishChampion, res.Advancement.Reason)
	assert.Equal(t, *match.Player2ID, *res.Advancement.ChampionID)
}

func TestDoubleDisqualification_LeavesNoChampion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 4)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	matches := roundMatches(t, f, 1)
	require.Len(t, matches, 2)

	res, err := f.matches.ResolveDisqualification(ctx, adminID, matches[0].ID, bracket.DisqualifyBoth())
	require.NoError(t, err)
	assert.Equal(t, bracket.OutcomeBothDisqualified, res.Match.Outcome)
	assert.Nil(t, res.Match.WinnerID)

	res, err = f.matches.ResolveWin(ctx, adminID, matches[1].ID, matches[1].Player1ID)
	require.NoError(t, err)
	require.NotNil(t, res.Advancement)
	assert.True(t, res.Advancement.Finished)
	assert.Equal(t, bracket.FinishDoubleDisqualification, res.Advancement.Reason)
	assert.Nil(t, res.Advancement.ChampionID)
	require.NotNil(t, res.Advancement.Survivor)
	assert.Equal(t, matches[1].Player1ID, *res.Advancement.Survivor)

	assert.Empty(t, roundMatches(t, f, 2), "no one-entrant round should be generated")

	status, err := f.tournaments.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Finished)
	assert.Nil(t, status.ChampionID)
}

func TestDoubleDisqualification_NoEntrantsLeft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 2)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	match := roundMatches(t, f, 1)[0]
	res, err := f.matches.ResolveDisqualification(ctx, adminID, match.ID, bracket.DisqualifyBoth())
	require.NoError(t, err)
	require.NotNil(t, res.Advancement)
	assert.Equal(t, bracket.FinishNoEntrants, res.Advancement.Reason)

	status, err := f.tournaments.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Finished)
	assert.Equal(t, bracket.FinishNoEntrants, status.FinishReason)
}

func TestResolve_ConcurrentCallsResolveOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 2)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)
	match := roundMatches(t, f, 1)[0]

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			winner := match.Player1ID
			if i%2 == 1 {
				winner = *match.Player2ID
			}
			_, errs[i] = f.matches.ResolveWin(ctx, adminID, match.ID, winner)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAdvanceRound_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 4)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	adv, err := f.matches.AdvanceRound(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, adv, "incomplete round must not advance")

	for _, m := range roundMatches(t, f, 1) {
		_, err := f.matches.ResolveWin(ctx, adminID, m.ID, m.Player1ID)
		require.NoError(t, err)
	}
	require.Len(t, roundMatches(t, f, 2), 1)

	for range 3 {
		adv, err := f.matches.AdvanceRound(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, adv)
	}
	assert.Len(t, roundMatches(t, f, 2), 1)
	assert.Empty(t, roundMatches(t, f, 3))

	current, err := f.tournaments.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, current)
}

func TestStart_NotifiesPlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 3)

	gen, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)
	require.NotNil(t, gen.Bye)

	for i := range 3 {
		assert.Len(t, f.notifier.messagesFor(userName(i)), 1, "user %d", i)
	}
	assert.Len(t, f.notifier.messagesFor(adminID), 1)

	snapshot := f.publisher.last()
	require.NotNil(t, snapshot)
	assert.Equal(t, bracket.PhaseInProgress, snapshot.Phase)
	assert.Equal(t, 1, snapshot.CurrentRound)
}

func TestResolve_ConcurrentSiblingMatchesAdvanceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 8)

	_, err := f.tournament.Start(ctx, adminID)
	require.NoError(t, err)

	round1 := roundMatches(t, f, 1)
	require.Len(t, round1, 4)

	var wg sync.WaitGroup
	results := make([]*Resolution, len(round1))
	errs := make([]error, len(round1))
	for i, m := range round1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.matches.ResolveWin(ctx, adminID, m.ID, m.Player1ID)
		}()
	}
	wg.Wait()

	advanced := 0
	for i := range round1 {
		require.NoError(t, errs[i])
		if results[i].Advancement != nil {
			advanced++
		}
	}
	assert.Equal(t, 1, advanced, "exactly one resolution should generate the next round")

	round2 := roundMatches(t, f, 2)
	require.Len(t, round2, 2)
	assert.Equal(t, 4, entrants(round2))
	assert.Empty(t, roundMatches(t, f, 3))
}
