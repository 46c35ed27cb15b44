// Package session keeps the per-caller registration conversation. Sessions are
// held in memory only and expire on their own if a caller walks away.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
)

type State string

const (
	StateAwaitingNickname  State = "awaiting_nickname"
	StateAwaitingCharacter State = "awaiting_character"
	// Terminal states are reported to callers but never stored.
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

// Registration is the scratch data collected so far for one caller.
type Registration struct {
	State    State    `json:"state"`
	Nickname string   `json:"nickname,omitempty"`
	Options  []string `json:"options,omitempty"`
}

type Store struct {
	store *memstore.MemStore
	ttl   time.Duration
	now   func() time.Time
}

// NewStore keeps sessions for ttl after their last update. Expired sessions are
// swept every cleanupInterval; zero disables the sweeper and expired sessions
// are then only hidden from Get.
func NewStore(ttl, cleanupInterval time.Duration) *Store {
	return &Store{
		store: memstore.NewWithCleanupInterval(cleanupInterval),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns nil without error when the caller has no live session.
func (s *Store) Get(callerID string) (*Registration, error) {
	b, found, err := s.store.Find(callerID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !found {
		return nil, nil
	}

	var reg Registration
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &reg, nil
}

// Put stores the registration and restarts its expiry.
func (s *Store) Put(callerID string, reg *Registration) error {
	b, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.store.Commit(callerID, b, s.now().Add(s.ttl))
}

func (s *Store) Delete(callerID string) error {
	return s.store.Delete(callerID)
}

// Close stops the background cleanup goroutine. Only call it on a store created
// with a cleanup interval, and not right after creating it: memstore starts the
// sweeper without synchronizing its stop channel.
func (s *Store) Close() {
	s.store.StopCleanup()
}
