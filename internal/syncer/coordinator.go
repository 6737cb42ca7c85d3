package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/breaker"
	"github.com/example/inventory-ledger/internal/domain/ledger"
)

// StockFeed is the external source of truth for per-channel quantities
type StockFeed interface {
	ChannelQuantity(ctx context.Context, productID, channel string) (int, error)
}

// ChannelResult is the per-channel outcome of a product sync
type ChannelResult struct {
	Channel          string `json:"channel"`
	Success          bool   `json:"success"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Delta            int    `json:"delta"`
	Reason           string `json:"reason,omitempty"`
}

// Coordinator reconciles one product across many channels. Each channel gets
// its own circuit breaker so one failing channel cannot starve the rest.
type Coordinator struct {
	service *ledger.Service
	feed    StockFeed

	failureThreshold int
	recoveryTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker

	// OnBreakerCreate, when set, is called once for each channel breaker as it
	// is created. Set before first use.
	OnBreakerCreate func(channel string, b *breaker.Breaker)
}

func NewCoordinator(service *ledger.Service, feed StockFeed, failureThreshold int, recoveryTimeout time.Duration) *Coordinator {
	return &Coordinator{
		service:          service,
		feed:             feed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		breakers:         make(map[string]*breaker.Breaker),
	}
}

// BreakerFor returns the breaker guarding a channel, creating it on first use
func (c *Coordinator) BreakerFor(channel string) *breaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.breakers[channel]
	if !ok {
		b = breaker.New(c.failureThreshold, c.recoveryTimeout)
		c.breakers[channel] = b
		if c.OnBreakerCreate != nil {
			c.OnBreakerCreate(channel, b)
		}
	}
	return b
}

// BreakerStates reports the current state of every channel breaker
func (c *Coordinator) BreakerStates() map[string]breaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]breaker.State, len(c.breakers))
	for channel, b := range c.breakers {
		states[channel] = b.State()
	}
	return states
}

// SyncForProduct reconciles productID on each channel against the feed.
// Failures are isolated per channel; every channel gets a result entry.
func (c *Coordinator) SyncForProduct(ctx context.Context, productID string, channels []string, source string) []ChannelResult {
	results := make([]ChannelResult, 0, len(channels))
	for _, channel := range channels {
		results = append(results, c.syncChannel(ctx, productID, channel, source))
	}
	return results
}

func (c *Coordinator) syncChannel(ctx context.Context, productID, channel, source string) ChannelResult {
	result := ChannelResult{Channel: channel}

	// Policy rejections are deterministic, not dependency failures; resolve
	// them before the breaker so they cannot trip it.
	if err := c.service.SyncAllowed(source); err != nil {
		result.Reason = err.Error()
		log.Warn().Err(err).
			Str("product_id", productID).
			Str("channel", channel).
			Str("source", source).
			Msg("sync source rejected by policy")
		return result
	}

	err := c.BreakerFor(channel).Execute(func() error {
		target, err := c.feed.ChannelQuantity(ctx, productID, channel)
		if err != nil {
			return err
		}

		syncResult, err := c.service.Sync(ctx, productID, channel, target, source)
		if err != nil {
			return err
		}

		result.Success = true
		result.PreviousQuantity = syncResult.PreviousQuantity
		result.NewQuantity = syncResult.NewQuantity
		result.Delta = syncResult.Delta
		return nil
	})
	if err != nil {
		result.Reason = err.Error()
		log.Warn().Err(err).
			Str("product_id", productID).
			Str("channel", channel).
			Str("source", source).
			Msg("channel sync failed")
	}
	return result
}
