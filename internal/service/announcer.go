package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/tourney-bot/internal/bracket"
	"github.com/AdamBeresnev/tourney-bot/internal/notify"
	"github.com/google/uuid"
)

// announcer tells players and admins about committed bracket changes and
// refreshes the live feed. Nothing here can fail the calling operation.
type announcer struct {
	deps   Deps
	reader snapshotReader
}

func (a announcer) round(ctx context.Context, gen *GeneratedRound) {
	snapshot := a.refresh(ctx)
	if snapshot == nil {
		return
	}
	nicknames := nicknameIndex(snapshot.Participants)
	users := userIndex(snapshot.Participants)

	var messages []notify.Message
	for _, p := range gen.Pairings {
		messages = append(messages,
			notify.Message{RecipientID: users[p.Player1], Text: matchNotice(gen.Round, nicknames[p.Player2], p.MatchID)},
			notify.Message{RecipientID: users[p.Player2], Text: matchNotice(gen.Round, nicknames[p.Player1], p.MatchID)},
		)
		for _, admin := range a.deps.AdminIDs {
			messages = append(messages, notify.Message{
				RecipientID: admin,
				Text:        fmt.Sprintf("Match %s (round %d): %s vs %s", p.MatchID, gen.Round, nicknames[p.Player1], nicknames[p.Player2]),
			})
		}
	}
	if gen.Bye != nil {
		messages = append(messages, notify.Message{
			RecipientID: users[*gen.Bye],
			Text:        fmt.Sprintf("You have a bye in round %d and advance automatically.", gen.Round),
		})
	}

	a.deps.Dispatcher.Send(ctx, messages)
}

func (a announcer) finish(ctx context.Context, adv *Advancement) {
	snapshot := a.refresh(ctx)
	if snapshot == nil {
		return
	}
	nicknames := nicknameIndex(snapshot.Participants)

	var text string
	switch adv.Reason {
	case bracket.FinishChampion:
		text = fmt.Sprintf("The tournament is over! Winner: %s", nicknames[*adv.ChampionID])
	case bracket.FinishDoubleDisqualification:
		text = fmt.Sprintf("The tournament is over after round %d. A double disqualification left %s without an opponent; no champion is declared.",
			adv.Round, nicknames[*adv.Survivor])
	default:
		text = fmt.Sprintf("The tournament is over after round %d with no remaining players; no champion is declared.", adv.Round)
	}

	recipients := append(userIDs(snapshot.Participants), a.deps.AdminIDs...)
	messages := make([]notify.Message, 0, len(recipients))
	for _, id := range recipients {
		messages = append(messages, notify.Message{RecipientID: id, Text: text})
	}
	a.deps.Dispatcher.Send(ctx, messages)
}

// refresh pushes the current bracket to the live feed and returns it.
func (a announcer) refresh(ctx context.Context) *Snapshot {
	snapshot, err := a.reader.load(ctx)
	if err != nil {
		a.deps.Logger.WarnContext(ctx, "failed to load bracket for announcement", "error", err)
		return nil
	}
	a.deps.Publisher.Publish(SnapshotEvent, snapshot)
	return snapshot
}

func matchNotice(round int, opponent string, matchID uuid.UUID) string {
	return fmt.Sprintf("Your next match!\n\nRound %d\nOpponent: %s\nMatch ID: %s", round, opponent, matchID)
}

func userIndex(participants []bracket.Participant) map[uuid.UUID]string {
	index := make(map[uuid.UUID]string, len(participants))
	for _, p := range participants {
		index[p.ID] = p.UserID
	}
	return index
}

func userIDs(participants []bracket.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
