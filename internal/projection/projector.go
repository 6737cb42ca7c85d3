package projection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/cache"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/readmodel"
)

// Projector folds inventory events into dashboard read models and keeps the
// hot availability cache warm. Events for one aggregate arrive in sequence
// order; stale versions are dropped by the view's guarded upsert.
type Projector struct {
	view  readmodel.InventoryView
	cache *cache.RedisCache // may be nil
}

func NewProjector(view readmodel.InventoryView, cache *cache.RedisCache) *Projector {
	return &Projector{view: view, cache: cache}
}

// HandleEvent is the Kafka message handler
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	if event.AggregateType != ledger.AggregateType {
		return nil
	}

	log.Debug().
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		Int("version", event.Version).
		Msg("projecting event")

	return p.Project(ctx, event)
}

// Project applies one event to the read model for its aggregate
func (p *Projector) Project(ctx context.Context, event store.Event) error {
	model, found, err := p.view.Get(ctx, event.AggregateID)
	if err != nil {
		return err
	}
	if !found {
		productID, channel := ledger.SplitAggregateID(event.AggregateID)
		model = &readmodel.InventoryReadModel{
			AggregateID: event.AggregateID,
			ProductID:   productID,
			Channel:     channel,
		}
	}
	if event.Version <= model.Version {
		// Replay or duplicate delivery; already folded in.
		return nil
	}

	if err := applyToModel(model, event); err != nil {
		return err
	}
	model.AvailableQuantity = model.Quantity - model.ReservedQuantity
	model.LastEventType = event.EventType
	model.Version = event.Version
	model.UpdatedAt = time.Now()

	if err := p.view.Upsert(ctx, model); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.SetAvailable(ctx, event.AggregateID, model.AvailableQuantity); err != nil {
			log.Warn().Err(err).Str("aggregate_id", event.AggregateID).Msg("availability cache update failed")
		}
	}
	return nil
}

func applyToModel(model *readmodel.InventoryReadModel, event store.Event) error {
	switch event.EventType {
	case ledger.EventStockReserved:
		var e ledger.StockReserved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		model.Quantity = e.QuantityAfter
		model.ReservedQuantity = e.ReservedAfter
		model.AllocatedQuantity = e.AllocatedAfter

	case ledger.EventStockReleased:
		var e ledger.StockReleased
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		model.Quantity = e.QuantityAfter
		model.ReservedQuantity = e.ReservedAfter
		model.AllocatedQuantity = e.AllocatedAfter

	case ledger.EventStockAllocated:
		var e ledger.StockAllocated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		model.Quantity = e.QuantityAfter
		model.ReservedQuantity = e.ReservedAfter
		model.AllocatedQuantity = e.AllocatedAfter

	case ledger.EventStockReplenished:
		var e ledger.StockReplenished
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		model.Quantity = e.QuantityAfter
		model.ReservedQuantity = e.ReservedAfter
		model.AllocatedQuantity = e.AllocatedAfter

	case ledger.EventStockSynced:
		var e ledger.StockSynced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		model.Quantity = e.TargetQuantity
		model.ReservedQuantity = e.ReservedAfter
		model.AllocatedQuantity = e.AllocatedAfter
		model.LastSyncedAt = e.SyncedAt
		model.SyncSource = e.Source
	}
	return nil
}

// Replay rebuilds all read models from the event log, used at startup before
// consuming live events.
func (p *Projector) Replay(ctx context.Context, eventStore store.EventStoreInterface) error {
	events := eventStore.GetAllEvents()
	for _, event := range events {
		if event.AggregateType != ledger.AggregateType {
			continue
		}
		if err := p.Project(ctx, event); err != nil {
			return err
		}
	}
	log.Info().Int("events", len(events)).Msg("read model replay complete")
	return nil
}
