package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

const (
	insertEvent = `
		INSERT INTO events (aggregate_id, type, data, version)
		VALUES (:aggregate_id, :type, :data, :version)`

	selectByAggregate = `
		SELECT id, aggregate_id, type, data, version, created_at
		FROM events WHERE aggregate_id = $1 ORDER BY version ASC`

	selectByType = `
		SELECT id, aggregate_id, type, data, version, created_at
		FROM events WHERE type = $1 ORDER BY created_at ASC`
)

// EventStore is the Postgres-backed audit journal. Events for one auction
// share an aggregate ID, and the (aggregate_id, version) pair is unique so
// a duplicate append fails instead of silently forking the history.
type EventStore struct {
	db *sqlx.DB
}

// NewEventStore returns an EventStore writing to db.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// Append writes events to the journal in a single transaction.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning journal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		if _, err := tx.NamedExecContext(ctx, insertEvent, e); err != nil {
			return fmt.Errorf("appending %s (aggregate=%s, version=%d): %w", e.Type, e.AggregateID, e.Version, err)
		}
	}

	return tx.Commit()
}

// Load returns the journal for one aggregate in version order.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	var events []event.Event
	if err := s.db.SelectContext(ctx, &events, selectByAggregate, aggregateID); err != nil {
		return nil, fmt.Errorf("reading journal for %s: %w", aggregateID, err)
	}
	return events, nil
}

// LoadByType returns all events of one kind across aggregates, oldest first.
func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	var events []event.Event
	if err := s.db.SelectContext(ctx, &events, selectByType, eventType); err != nil {
		return nil, fmt.Errorf("reading journal by type %s: %w", eventType, err)
	}
	return events, nil
}
