package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes each message to <prefix>.<recipient>; the chat
// transport subscribes and delivers.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

func Connect(url string, prefix string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("tourney-bot"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSNotifier(nc, prefix), nil
}

func NewNATSNotifier(conn *nats.Conn, prefix string) *NATSNotifier {
	return &NATSNotifier{conn: conn, prefix: prefix}
}

func Subject(prefix, recipientID string) string {
	return prefix + "." + recipientID
}

func (n *NATSNotifier) Notify(ctx context.Context, recipientID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Message{RecipientID: recipientID, Text: text})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.conn.Publish(Subject(n.prefix, recipientID), payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}
