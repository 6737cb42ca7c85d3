package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Append when the aggregate gained events
// between the caller's read and the write attempt.
var ErrVersionConflict = errors.New("event store: version conflict")

// EventStoreInterface defines the interface for event stores
type EventStoreInterface interface {
	// Append stores an event with sequence expectedVersion+1. It fails with
	// ErrVersionConflict if the aggregate's latest sequence is not expectedVersion.
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*Event, error)

	// GetEvents returns all events for an aggregate in sequence order
	GetEvents(aggregateID string) []Event

	// GetEventsFromVersion returns events with sequence greater than fromVersion
	GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) []Event

	// GetAllEvents returns all events across aggregates
	GetAllEvents() []Event

	// ListAggregateIDs returns the ids of all aggregates with at least one event
	ListAggregateIDs(ctx context.Context) []string

	// SaveSnapshot stores a snapshot, pruning ones past the retention limit
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetSnapshot retrieves the latest snapshot for an aggregate, nil if none
	GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
}
