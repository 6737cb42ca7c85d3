package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/domain/aggregate"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/oplog"
)

// DefaultReservationTTL is applied when a caller does not pass a TTL
const DefaultReservationTTL = 24 * time.Hour

// maxAttempts bounds the optimistic-locking retry loop
const maxAttempts = 3

// errNothingReserved signals a release that found no reserved stock; it never
// leaves the package.
var errNothingReserved = errors.New("nothing reserved")

// SyncResult reports the outcome of a reconciliation against an external source
type SyncResult struct {
	AggregateID      string `json:"aggregate_id"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Delta            int    `json:"delta"`
}

// FulfillmentCheck answers whether an amount could be reserved right now
type FulfillmentCheck struct {
	CanFulfill        bool    `json:"can_fulfill"`
	Reason            string  `json:"reason,omitempty"`
	UtilizationImpact float64 `json:"utilization_impact"`
}

// Service owns the five ledger mutations and the derived queries. Every
// mutation runs through the optimistic retry loop: load, decide, append with
// the observed version, and on conflict reload and re-run the whole decision.
type Service struct {
	eventStore store.EventStoreInterface
	records    store.RecordStoreInterface
	policy     SyncPolicy
	ops        *oplog.Recorder

	now func() time.Time
}

// NewService creates a ledger service. records and ops may be nil.
func NewService(eventStore store.EventStoreInterface, records store.RecordStoreInterface, policy SyncPolicy, ops *oplog.Recorder) *Service {
	return &Service{
		eventStore: eventStore,
		records:    records,
		policy:     policy,
		ops:        ops,
		now:        time.Now,
	}
}

// SetClock overrides the service clock, for tests
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Load rebuilds the ledger for a product x channel pair from snapshot+events
func (s *Service) Load(ctx context.Context, productID, channel string) (*Ledger, error) {
	l, _, err := aggregate.Load(ctx, s.eventStore, AggregateID(productID, channel), func() *Ledger {
		return NewLedger(productID, channel)
	})
	return l, err
}

// Reserve places a hold of amount against available stock and returns the
// handle. The hold expires at now+ttl unless released or allocated first.
func (s *Service) Reserve(ctx context.Context, productID, channel string, amount int, correlationID string, ttl time.Duration) (*Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}

	start := s.now()
	expiresAt := start.Add(ttl)

	_, err := s.execute(ctx, productID, channel, func(l *Ledger) (string, any, error) {
		if amount <= 0 {
			return "", nil, ErrInvalidAmount
		}
		if l.AvailableQuantity() < amount {
			return "", nil, ErrInsufficientAvailability
		}
		return EventStockReserved, StockReserved{
			ProductID:      productID,
			Channel:        channel,
			Amount:         amount,
			QuantityAfter:  l.Quantity,
			ReservedAfter:  l.ReservedQuantity + amount,
			AllocatedAfter: l.AllocatedQuantity,
			CorrelationID:  correlationID,
			ExpiresAt:      expiresAt,
			ReservedAt:     s.now(),
		}, nil
	})
	s.record("reserve", productID, channel, amount, start, err)
	if err != nil {
		return nil, err
	}

	return &Reservation{
		CorrelationID: correlationID,
		Amount:        amount,
		ExpiresAt:     expiresAt,
	}, nil
}

// Release returns held stock to the available pool. Releasing more than is
// held releases what is there; releasing when nothing is held is a no-op
// returning false.
func (s *Service) Release(ctx context.Context, productID, channel string, amount int, correlationID, reason string) (bool, error) {
	start := s.now()

	_, err := s.execute(ctx, productID, channel, func(l *Ledger) (string, any, error) {
		if amount <= 0 {
			return "", nil, ErrInvalidAmount
		}
		actual := amount
		if actual > l.ReservedQuantity {
			actual = l.ReservedQuantity
		}
		if actual == 0 {
			return "", nil, errNothingReserved
		}
		// The release is caused by the event that opened the hold.
		causationID := ""
		if hold, ok := l.Reservations[correlationID]; ok {
			causationID = hold.EventID
		}
		return EventStockReleased, StockReleased{
			ProductID:      productID,
			Channel:        channel,
			Amount:         actual,
			QuantityAfter:  l.Quantity,
			ReservedAfter:  l.ReservedQuantity - actual,
			AllocatedAfter: l.AllocatedQuantity,
			CorrelationID:  correlationID,
			CausationID:    causationID,
			Reason:         reason,
			ReleasedAt:     s.now(),
		}, nil
	})
	if errors.Is(err, errNothingReserved) {
		s.record("release", productID, channel, amount, start, nil)
		return false, nil
	}
	s.record("release", productID, channel, amount, start, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Allocate converts reserved stock into fulfilled stock. The amount must be
// covered by reservations; stock that was never reserved cannot be allocated.
func (s *Service) Allocate(ctx context.Context, productID, channel string, amount int, orderID, shipmentID string) error {
	start := s.now()

	_, err := s.execute(ctx, productID, channel, func(l *Ledger) (string, any, error) {
		if amount <= 0 {
			return "", nil, ErrInvalidAmount
		}
		if l.ReservedQuantity < amount {
			return "", nil, ErrInsufficientReserved
		}
		return EventStockAllocated, StockAllocated{
			ProductID:      productID,
			Channel:        channel,
			Amount:         amount,
			QuantityAfter:  l.Quantity - amount,
			ReservedAfter:  l.ReservedQuantity - amount,
			AllocatedAfter: l.AllocatedQuantity + amount,
			OrderID:        orderID,
			ShipmentID:     shipmentID,
			AllocatedAt:    s.now(),
		}, nil
	})
	s.record("allocate", productID, channel, amount, start, err)
	return err
}

// Replenish adds stock from a supply source
func (s *Service) Replenish(ctx context.Context, productID, channel string, amount int, source string, metadata map[string]string) error {
	start := s.now()

	_, err := s.execute(ctx, productID, channel, func(l *Ledger) (string, any, error) {
		if amount <= 0 {
			return "", nil, ErrInvalidAmount
		}
		return EventStockReplenished, StockReplenished{
			ProductID:      productID,
			Channel:        channel,
			Amount:         amount,
			QuantityAfter:  l.Quantity + amount,
			ReservedAfter:  l.ReservedQuantity,
			AllocatedAfter: l.AllocatedQuantity,
			Source:         source,
			Metadata:       metadata,
			ReplenishedAt:  s.now(),
		}, nil
	})
	s.record("replenish", productID, channel, amount, start, err)
	return err
}

// SyncAllowed reports whether the policy accepts source at this moment.
// Callers that guard syncs with a breaker check this first, so a policy
// rejection is not mistaken for a dependency failure.
func (s *Service) SyncAllowed(source string) error {
	if !s.policy.CanSynchronizeFrom(source, s.now()) {
		return ErrSourceNotAllowed
	}
	return nil
}

// Sync reconciles quantity against an external source of truth
func (s *Service) Sync(ctx context.Context, productID, channel string, targetQuantity int, source string) (*SyncResult, error) {
	start := s.now()

	var result *SyncResult
	_, err := s.execute(ctx, productID, channel, func(l *Ledger) (string, any, error) {
		if targetQuantity < 0 {
			return "", nil, ErrInvalidAmount
		}
		if !s.policy.CanSynchronizeFrom(source, s.now()) {
			return "", nil, ErrSourceNotAllowed
		}
		delta := targetQuantity - l.Quantity
		result = &SyncResult{
			AggregateID:      l.GetID(),
			PreviousQuantity: l.Quantity,
			NewQuantity:      targetQuantity,
			Delta:            delta,
		}
		reservedAfter := l.ReservedQuantity
		if reservedAfter > targetQuantity {
			reservedAfter = targetQuantity
		}
		return EventStockSynced, StockSynced{
			ProductID:        productID,
			Channel:          channel,
			PreviousQuantity: l.Quantity,
			TargetQuantity:   targetQuantity,
			Delta:            delta,
			ReservedAfter:    reservedAfter,
			AllocatedAfter:   l.AllocatedQuantity,
			Source:           source,
			SyncedAt:         s.now(),
		}, nil
	})
	s.record("sync", productID, channel, targetQuantity, start, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AvailableQuantity returns quantity minus reserved for a product x channel pair
func (s *Service) AvailableQuantity(ctx context.Context, productID, channel string) (int, error) {
	l, err := s.Load(ctx, productID, channel)
	if err != nil {
		return 0, err
	}
	return l.AvailableQuantity(), nil
}

// CanFulfill answers whether amount could be reserved right now, and how much
// of the available pool the request would consume.
func (s *Service) CanFulfill(ctx context.Context, productID, channel string, amount int) (*FulfillmentCheck, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	l, err := s.Load(ctx, productID, channel)
	if err != nil {
		return nil, err
	}

	available := l.AvailableQuantity()
	check := &FulfillmentCheck{UtilizationImpact: 1.0}
	if available > 0 {
		impact := float64(amount) / float64(available)
		if impact < 1.0 {
			check.UtilizationImpact = impact
		}
	}

	switch {
	case available <= 0:
		check.Reason = "out_of_stock"
	case available < amount:
		check.Reason = "insufficient_available"
	default:
		check.CanFulfill = true
	}
	return check, nil
}

// ReleaseExpired releases every reservation whose TTL elapsed before now.
// It is driven by the sweeper; the ledger itself never watches the clock.
func (s *Service) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	released := 0
	for _, aggregateID := range s.eventStore.ListAggregateIDs(ctx) {
		productID, channel := SplitAggregateID(aggregateID)
		l, err := s.Load(ctx, productID, channel)
		if err != nil {
			return released, err
		}
		for _, r := range l.ExpiredReservations(now) {
			ok, err := s.Release(ctx, productID, channel, r.Amount, r.CorrelationID, "expired")
			if err != nil {
				log.Warn().Err(err).
					Str("aggregate_id", aggregateID).
					Str("correlation_id", r.CorrelationID).
					Msg("expired reservation release failed")
				continue
			}
			if ok {
				released++
			}
		}
	}
	return released, nil
}

// execute is the concurrency controller: it loads the aggregate, runs decide
// against fresh state, and appends the produced event guarded by the version
// it observed. A conflicting writer forces a reload and a full re-decision.
func (s *Service) execute(ctx context.Context, productID, channel string, decide func(l *Ledger) (string, any, error)) (*Ledger, error) {
	aggregateID := AggregateID(productID, channel)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		l, err := s.Load(ctx, productID, channel)
		if err != nil {
			return nil, err
		}

		eventType, payload, err := decide(l)
		if err != nil {
			// Validation and availability failures emit no event.
			return nil, err
		}

		event, err := s.eventStore.Append(ctx, aggregateID, AggregateType, eventType, payload, l.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			log.Debug().
				Str("aggregate_id", aggregateID).
				Int("attempt", attempt).
				Msg("version conflict, re-running operation")
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := l.ApplyEvent(*event); err != nil {
			return nil, err
		}

		s.maybeSnapshot(ctx, l, eventType)
		s.saveRecord(ctx, l)
		return l, nil
	}

	return nil, ErrConcurrencyConflict
}

// significantEvent marks the milestones that force a snapshot regardless of
// the event-count threshold.
func significantEvent(eventType string) bool {
	return eventType == EventStockAllocated || eventType == EventStockSynced
}

func (s *Service) maybeSnapshot(ctx context.Context, l *Ledger, eventType string) {
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, l, AggregateType, significantEvent(eventType)); err != nil {
		log.Warn().Err(err).Str("aggregate_id", l.GetID()).Msg("snapshot creation failed")
	}
}

func (s *Service) saveRecord(ctx context.Context, l *Ledger) {
	if s.records == nil {
		return
	}
	if err := s.records.Save(ctx, l.Record(s.now())); err != nil {
		log.Warn().Err(err).Str("aggregate_id", l.GetID()).Msg("cached record save failed")
	}
}

func (s *Service) record(op, productID, channel string, amount int, start time.Time, err error) {
	if s.ops == nil {
		return
	}
	entry := oplog.Entry{
		OperationType: op,
		AggregateID:   AggregateID(productID, channel),
		Amount:        amount,
		Success:       err == nil,
		Duration:      s.now().Sub(start),
		Timestamp:     start,
	}
	if err != nil {
		entry.FailureReason = err.Error()
	}
	s.ops.Record(entry)
}
