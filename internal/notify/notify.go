package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a text message to a single recipient (a participant's or
// admin's external user id).
type Notifier interface {
	Notify(ctx context.Context, recipientID string, text string) error
}

type Message struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// LogNotifier only logs messages. It is used when no transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, recipientID string, text string) error {
	n.logger.InfoContext(ctx, "notification", "recipient", recipientID, "text", text)
	return nil
}
