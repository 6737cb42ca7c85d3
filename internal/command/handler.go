package command

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/cache"
	"github.com/example/inventory-ledger/internal/syncer"
)

// ErrDuplicateCommand is returned when a correlation id was already used for a
// reservation within the guard TTL.
var ErrDuplicateCommand = errors.New("duplicate correlation id")

// Handler dispatches write commands to the ledger service. When a cache is
// configured, reservations are deduplicated by correlation id; duplicates are
// rejected rather than replayed, the caller owns retry semantics.
type Handler struct {
	ledgerSvc   *ledger.Service
	coordinator *syncer.Coordinator // may be nil
	cache       *cache.RedisCache   // may be nil
}

func NewHandler(ledgerSvc *ledger.Service, coordinator *syncer.Coordinator, cache *cache.RedisCache) *Handler {
	return &Handler{
		ledgerSvc:   ledgerSvc,
		coordinator: coordinator,
		cache:       cache,
	}
}

// ReserveStock places a hold against available stock (emits StockReserved)
func (h *Handler) ReserveStock(ctx context.Context, cmd ReserveStock) (*ledger.Reservation, error) {
	if h.cache != nil && cmd.CorrelationID != "" {
		claimed, err := h.cache.ClaimCorrelationID(ctx, cmd.CorrelationID)
		if err != nil {
			// Redis being down must not block writes; fall through unguarded.
			log.Warn().Err(err).Str("correlation_id", cmd.CorrelationID).Msg("correlation guard unavailable")
		} else if !claimed {
			return nil, ErrDuplicateCommand
		}
	}

	ttl := time.Duration(cmd.TTLSeconds) * time.Second
	r, err := h.ledgerSvc.Reserve(ctx, cmd.ProductID, cmd.Channel, cmd.Amount, cmd.CorrelationID, ttl)
	if err != nil {
		h.releaseClaim(ctx, cmd.CorrelationID)
		return nil, err
	}
	return r, nil
}

// ReleaseStock returns held stock to the available pool (emits StockReleased).
// The bool reports whether anything was actually released.
func (h *Handler) ReleaseStock(ctx context.Context, cmd ReleaseStock) (bool, error) {
	return h.ledgerSvc.Release(ctx, cmd.ProductID, cmd.Channel, cmd.Amount, cmd.CorrelationID, cmd.Reason)
}

// AllocateStock converts reserved stock into fulfilled stock (emits StockAllocated)
func (h *Handler) AllocateStock(ctx context.Context, cmd AllocateStock) error {
	return h.ledgerSvc.Allocate(ctx, cmd.ProductID, cmd.Channel, cmd.Amount, cmd.OrderID, cmd.ShipmentID)
}

// ReplenishStock adds stock from a supply source (emits StockReplenished)
func (h *Handler) ReplenishStock(ctx context.Context, cmd ReplenishStock) error {
	return h.ledgerSvc.Replenish(ctx, cmd.ProductID, cmd.Channel, cmd.Amount, cmd.Source, cmd.Metadata)
}

// SyncStock reconciles one channel against an external count (emits StockSynced)
func (h *Handler) SyncStock(ctx context.Context, cmd SyncStock) (*ledger.SyncResult, error) {
	return h.ledgerSvc.Sync(ctx, cmd.ProductID, cmd.Channel, cmd.TargetQuantity, cmd.Source)
}

// SyncProduct reconciles every listed channel of a product through the
// coordinator, one breaker per channel.
func (h *Handler) SyncProduct(ctx context.Context, cmd SyncProduct) ([]syncer.ChannelResult, error) {
	if h.coordinator == nil {
		return nil, errors.New("sync coordinator not configured")
	}
	return h.coordinator.SyncForProduct(ctx, cmd.ProductID, cmd.Channels, cmd.Source), nil
}

func (h *Handler) releaseClaim(ctx context.Context, correlationID string) {
	if h.cache == nil || correlationID == "" {
		return
	}
	if err := h.cache.ReleaseCorrelationID(ctx, correlationID); err != nil {
		log.Warn().Err(err).Str("correlation_id", correlationID).Msg("correlation claim release failed")
	}
}
