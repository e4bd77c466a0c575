// Package memstore provides the in-process audit journal. It is the
// default backend: the auction itself is in-memory only, so the journal
// does not need to outlive the process unless operators opt into Postgres.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

// closerFunc adapts a func() error into an io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	es := NewEventStore(clk)
	return &store.Repositories{
		Events: es,
		Closer: closerFunc(func() error { return nil }),
		Ping:   func(context.Context) error { return nil },
	}, nil
}

// EventStore implements event.Store in memory. Safe for concurrent use.
type EventStore struct {
	mu     sync.Mutex
	events []event.Event
	nextID int
	clock  clock.Clock
}

// NewEventStore returns an empty in-memory journal.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

// Append stores the events. All-or-nothing is trivial here: the slice is
// extended under one lock hold.
func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.nextID++
		e.ID = fmt.Sprintf("%d", s.nextID)
		e.CreatedAt = s.clock.Now().UTC()
		s.events = append(s.events, e)
	}
	return nil
}

// Load returns all events for an aggregate in append order, which is also
// version order for a single writer.
func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// LoadByType returns events of the given type in append order.
func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}
