package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/inventory-ledger/internal/infrastructure/kafka"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"` // per-aggregate sequence, gap-free
}

// EventStore is an in-memory event store used in tests and single-node setups.
// It stores and publishes domain events.
type EventStore struct {
	mu        sync.RWMutex
	events    map[string][]Event // aggregateID -> events
	snapshots map[string][]Snapshot
	producer  *kafka.Producer
}

func NewEventStore(producer *kafka.Producer) *EventStore {
	return &EventStore{
		events:    make(map[string][]Event),
		snapshots: make(map[string][]Snapshot),
		producer:  producer,
	}
}

// Append stores an event and publishes it to Kafka. The write is rejected
// with ErrVersionConflict unless the aggregate's latest sequence equals
// expectedVersion.
func (es *EventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any, expectedVersion int) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	es.mu.Lock()
	current := len(es.events[aggregateID])
	if current != expectedVersion {
		es.mu.Unlock()
		return nil, ErrVersionConflict
	}
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       current + 1,
	}
	es.events[aggregateID] = append(es.events[aggregateID], event)
	es.mu.Unlock()

	// Publish to Kafka
	if es.producer != nil {
		if err := es.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, err
		}
	}

	return &event, nil
}

// GetEvents returns all events for an aggregate
func (es *EventStore) GetEvents(aggregateID string) []Event {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.events[aggregateID]
}

// GetEventsFromVersion returns events with sequence greater than fromVersion
func (es *EventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) []Event {
	es.mu.RLock()
	defer es.mu.RUnlock()

	all := es.events[aggregateID]
	if fromVersion >= len(all) {
		return nil
	}
	// Versions are gap-free and start at 1, so the slice index is the version.
	return all[fromVersion:]
}

// GetAllEvents returns all events
func (es *EventStore) GetAllEvents() []Event {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var all []Event
	for _, events := range es.events {
		all = append(all, events...)
	}
	return all
}

// ListAggregateIDs returns the ids of all aggregates with at least one event
func (es *EventStore) ListAggregateIDs(ctx context.Context) []string {
	es.mu.RLock()
	defer es.mu.RUnlock()

	ids := make([]string, 0, len(es.events))
	for id := range es.events {
		ids = append(ids, id)
	}
	return ids
}

// SaveSnapshot stores a snapshot, keeping the most recent SnapshotRetention
func (es *EventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	snaps := append(es.snapshots[snapshot.AggregateID], *snapshot)
	if len(snaps) > SnapshotRetention {
		snaps = snaps[len(snaps)-SnapshotRetention:]
	}
	es.snapshots[snapshot.AggregateID] = snaps
	return nil
}

// GetSnapshot retrieves the latest snapshot for an aggregate
func (es *EventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	snaps := es.snapshots[aggregateID]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[len(snaps)-1]
	return &latest, nil
}

// Ping always succeeds for the in-memory store
func (es *EventStore) Ping(ctx context.Context) error {
	return nil
}
