package query

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/infrastructure/cache"
	"github.com/example/inventory-ledger/internal/monitor"
	"github.com/example/inventory-ledger/internal/readmodel"
)

var ErrNotFound = errors.New("inventory not found")

// StockView is a read model decorated with its classified stock status.
type StockView struct {
	readmodel.InventoryReadModel
	StockStatus string `json:"stock_status"`
}

// Handler answers dashboard and availability queries from the read side.
// Availability prefers the Redis cache and falls back to the read models.
type Handler struct {
	view       readmodel.InventoryView
	cache      *cache.RedisCache // may be nil
	thresholds monitor.Thresholds
}

func NewHandler(view readmodel.InventoryView, cache *cache.RedisCache, thresholds monitor.Thresholds) (*Handler, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Handler{view: view, cache: cache, thresholds: thresholds}, nil
}

// Get returns the read model for one product/channel pair
func (h *Handler) Get(ctx context.Context, aggregateID string) (*StockView, error) {
	model, found, err := h.view.Get(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return h.decorate(model), nil
}

// List returns all read models
func (h *Handler) List(ctx context.Context) ([]*StockView, error) {
	models, err := h.view.List(ctx)
	if err != nil {
		return nil, err
	}
	return h.decorateAll(models), nil
}

// ListByProduct returns the per-channel read models for one product
func (h *Handler) ListByProduct(ctx context.Context, productID string) ([]*StockView, error) {
	models, err := h.view.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return h.decorateAll(models), nil
}

// Available returns the available quantity for an aggregate, cache first
func (h *Handler) Available(ctx context.Context, aggregateID string) (int, error) {
	if h.cache != nil {
		available, hit, err := h.cache.GetAvailable(ctx, aggregateID)
		if err != nil {
			log.Warn().Err(err).Str("aggregate_id", aggregateID).Msg("availability cache read failed")
		} else if hit {
			return available, nil
		}
	}

	model, found, err := h.view.Get(ctx, aggregateID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}

	if h.cache != nil {
		if err := h.cache.SetAvailable(ctx, aggregateID, model.AvailableQuantity); err != nil {
			log.Warn().Err(err).Str("aggregate_id", aggregateID).Msg("availability cache backfill failed")
		}
	}
	return model.AvailableQuantity, nil
}

func (h *Handler) decorate(model *readmodel.InventoryReadModel) *StockView {
	return &StockView{
		InventoryReadModel: *model,
		StockStatus:        h.thresholds.Classify(model.Quantity, model.ReservedQuantity),
	}
}

func (h *Handler) decorateAll(models []*readmodel.InventoryReadModel) []*StockView {
	views := make([]*StockView, 0, len(models))
	for _, model := range models {
		views = append(views, h.decorate(model))
	}
	return views
}
