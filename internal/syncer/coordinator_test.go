package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inventory-ledger/internal/breaker"
	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/store/mocks"
)

// mockFeed serves canned quantities per product:channel key and can fail
// selected channels.
type mockFeed struct {
	quantities map[string]int
	failures   map[string]error
	calls      int
}

func (f *mockFeed) ChannelQuantity(ctx context.Context, productID, channel string) (int, error) {
	f.calls++
	key := productID + ":" + channel
	if err, ok := f.failures[key]; ok {
		return 0, err
	}
	return f.quantities[key], nil
}

func newTestCoordinator(feed *mockFeed) (*Coordinator, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := ledger.NewService(eventStore, nil, ledger.DefaultSyncPolicy(), nil)
	return NewCoordinator(service, feed, 3, time.Minute), eventStore
}

func seedChannel(t *testing.T, eventStore *mocks.MockEventStore, productID, channel string, quantity int) {
	t.Helper()
	err := eventStore.AddEvent(ledger.AggregateID(productID, channel), ledger.AggregateType, ledger.EventStockReplenished, ledger.StockReplenished{
		Amount:        quantity,
		QuantityAfter: quantity,
	})
	require.NoError(t, err)
}

// ============================================
// SyncForProduct Tests
// ============================================

func TestCoordinator_SyncForProduct_AllChannels(t *testing.T) {
	feed := &mockFeed{quantities: map[string]int{
		"sku-1:web":    80,
		"sku-1:retail": 40,
	}}
	c, eventStore := newTestCoordinator(feed)
	seedChannel(t, eventStore, "sku-1", "web", 100)
	seedChannel(t, eventStore, "sku-1", "retail", 50)

	results := c.SyncForProduct(context.Background(), "sku-1", []string{"web", "retail"}, "warehouse")

	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, "web", results[0].Channel)
	assert.Equal(t, 100, results[0].PreviousQuantity)
	assert.Equal(t, 80, results[0].NewQuantity)
	assert.Equal(t, -20, results[0].Delta)

	assert.True(t, results[1].Success)
	assert.Equal(t, "retail", results[1].Channel)
	assert.Equal(t, -10, results[1].Delta)
}

func TestCoordinator_SyncForProduct_FailureIsolatedPerChannel(t *testing.T) {
	feed := &mockFeed{
		quantities: map[string]int{"sku-1:retail": 40},
		failures:   map[string]error{"sku-1:web": errors.New("marketplace timeout")},
	}
	c, eventStore := newTestCoordinator(feed)
	seedChannel(t, eventStore, "sku-1", "web", 100)
	seedChannel(t, eventStore, "sku-1", "retail", 50)

	results := c.SyncForProduct(context.Background(), "sku-1", []string{"web", "retail"}, "warehouse")

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Reason, "marketplace timeout")

	// The failing channel does not stop the healthy one.
	assert.True(t, results[1].Success)
	assert.Equal(t, 40, results[1].NewQuantity)
}

func TestCoordinator_SyncForProduct_UntrustedSourceRejected(t *testing.T) {
	feed := &mockFeed{quantities: map[string]int{"sku-1:web": 80}}
	eventStore := mocks.NewMockEventStore()
	service := ledger.NewService(eventStore, nil, ledger.DefaultSyncPolicy(), nil)
	// Midday UTC, outside the untrusted-source window.
	service.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	c := NewCoordinator(service, feed, 3, time.Minute)
	seedChannel(t, eventStore, "sku-1", "web", 100)

	results := c.SyncForProduct(context.Background(), "sku-1", []string{"web"}, "marketplace-feed")

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Reason, ledger.ErrSourceNotAllowed.Error())
}

func TestCoordinator_PolicyRejectionDoesNotOpenBreaker(t *testing.T) {
	feed := &mockFeed{quantities: map[string]int{"sku-1:web": 80}}
	eventStore := mocks.NewMockEventStore()
	service := ledger.NewService(eventStore, nil, ledger.DefaultSyncPolicy(), nil)
	// Midday UTC, outside the untrusted-source window.
	service.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	c := NewCoordinator(service, feed, 3, time.Minute)
	seedChannel(t, eventStore, "sku-1", "web", 100)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		results := c.SyncForProduct(ctx, "sku-1", []string{"web"}, "marketplace-feed")
		assert.False(t, results[0].Success)
		assert.Contains(t, results[0].Reason, ledger.ErrSourceNotAllowed.Error())
	}

	// Rejections never reach the feed and leave the breaker untouched.
	assert.Zero(t, feed.calls)
	assert.Equal(t, breaker.StateClosed, c.BreakerFor("web").State())

	// A trusted source still syncs the channel.
	results := c.SyncForProduct(ctx, "sku-1", []string{"web"}, "warehouse")
	require.True(t, results[0].Success)
	assert.Equal(t, 80, results[0].NewQuantity)
}

// ============================================
// Breaker Tests
// ============================================

func TestCoordinator_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	feed := &mockFeed{failures: map[string]error{"sku-1:web": errors.New("feed down")}}
	c, eventStore := newTestCoordinator(feed)
	seedChannel(t, eventStore, "sku-1", "web", 100)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		results := c.SyncForProduct(ctx, "sku-1", []string{"web"}, "warehouse")
		assert.False(t, results[0].Success)
	}

	assert.Equal(t, breaker.StateOpen, c.BreakerFor("web").State())

	// While open, the feed is not even consulted.
	callsBefore := feed.calls
	results := c.SyncForProduct(ctx, "sku-1", []string{"web"}, "warehouse")
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Reason, breaker.ErrCircuitOpen.Error())
	assert.Equal(t, callsBefore, feed.calls)
}

func TestCoordinator_BreakersArePerChannel(t *testing.T) {
	feed := &mockFeed{
		quantities: map[string]int{"sku-1:retail": 40},
		failures:   map[string]error{"sku-1:web": errors.New("feed down")},
	}
	c, eventStore := newTestCoordinator(feed)
	seedChannel(t, eventStore, "sku-1", "web", 100)
	seedChannel(t, eventStore, "sku-1", "retail", 50)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.SyncForProduct(ctx, "sku-1", []string{"web", "retail"}, "warehouse")
	}

	states := c.BreakerStates()
	assert.Equal(t, breaker.StateOpen, states["web"])
	assert.Equal(t, breaker.StateClosed, states["retail"])
}

func TestCoordinator_BreakerFor_ReturnsSameInstance(t *testing.T) {
	c, _ := newTestCoordinator(&mockFeed{})

	assert.Same(t, c.BreakerFor("web"), c.BreakerFor("web"))
	assert.NotSame(t, c.BreakerFor("web"), c.BreakerFor("retail"))
}

func TestCoordinator_OnBreakerCreate(t *testing.T) {
	c, _ := newTestCoordinator(&mockFeed{})

	created := make(map[string]*breaker.Breaker)
	c.OnBreakerCreate = func(channel string, b *breaker.Breaker) {
		created[channel] = b
	}

	web := c.BreakerFor("web")
	c.BreakerFor("web")
	retail := c.BreakerFor("retail")

	assert.Len(t, created, 2)
	assert.Same(t, web, created["web"])
	assert.Same(t, retail, created["retail"])
}
