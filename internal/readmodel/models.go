package readmodel

import (
	"context"
	"sync"
	"time"
)

// InventoryReadModel is the dashboard-facing view of one aggregate,
// maintained asynchronously by the projector.
type InventoryReadModel struct {
	AggregateID       string    `json:"aggregate_id"`
	ProductID         string    `json:"product_id"`
	Channel           string    `json:"channel"`
	Quantity          int       `json:"quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	AllocatedQuantity int       `json:"allocated_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	LastEventType     string    `json:"last_event_type"`
	LastSyncedAt      time.Time `json:"last_synced_at,omitempty"`
	SyncSource        string    `json:"sync_source,omitempty"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// InventoryView stores inventory read models
type InventoryView interface {
	Upsert(ctx context.Context, model *InventoryReadModel) error
	Get(ctx context.Context, aggregateID string) (*InventoryReadModel, bool, error)
	List(ctx context.Context) ([]*InventoryReadModel, error)
	ListByProduct(ctx context.Context, productID string) ([]*InventoryReadModel, error)
	Delete(ctx context.Context, aggregateID string) error
}

// MemoryView is an in-memory InventoryView
type MemoryView struct {
	mu     sync.RWMutex
	models map[string]InventoryReadModel
}

func NewMemoryView() *MemoryView {
	return &MemoryView{models: make(map[string]InventoryReadModel)}
}

func (v *MemoryView) Upsert(ctx context.Context, model *InventoryReadModel) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.models[model.AggregateID] = *model
	return nil
}

func (v *MemoryView) Get(ctx context.Context, aggregateID string) (*InventoryReadModel, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	model, ok := v.models[aggregateID]
	if !ok {
		return nil, false, nil
	}
	return &model, true, nil
}

func (v *MemoryView) List(ctx context.Context) ([]*InventoryReadModel, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	models := make([]*InventoryReadModel, 0, len(v.models))
	for id := range v.models {
		model := v.models[id]
		models = append(models, &model)
	}
	return models, nil
}

func (v *MemoryView) ListByProduct(ctx context.Context, productID string) ([]*InventoryReadModel, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var models []*InventoryReadModel
	for id := range v.models {
		if v.models[id].ProductID == productID {
			model := v.models[id]
			models = append(models, &model)
		}
	}
	return models, nil
}

func (v *MemoryView) Delete(ctx context.Context, aggregateID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.models, aggregateID)
	return nil
}
