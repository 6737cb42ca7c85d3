package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inventory-ledger/internal/infrastructure/store"
)

func makeEvent(t *testing.T, aggregateID, eventType string, version int, data any) store.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return store.Event{
		ID:            "evt-test",
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now(),
		Version:       version,
	}
}

// ============================================
// Aggregate ID Tests
// ============================================

func TestAggregateID(t *testing.T) {
	assert.Equal(t, "sku-1:web", AggregateID("sku-1", "web"))

	productID, channel := SplitAggregateID("sku-1:web")
	assert.Equal(t, "sku-1", productID)
	assert.Equal(t, "web", channel)
}

func TestSplitAggregateID_NoChannel(t *testing.T) {
	productID, channel := SplitAggregateID("sku-1")
	assert.Equal(t, "sku-1", productID)
	assert.Empty(t, channel)
}

// ============================================
// Ledger Struct Tests
// ============================================

func TestLedger_AvailableQuantity(t *testing.T) {
	tests := []struct {
		name          string
		quantity      int
		reserved      int
		expectedAvail int
	}{
		{"no reservations", 100, 0, 100},
		{"some reserved", 100, 30, 70},
		{"all reserved", 50, 50, 0},
		{"zero stock", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Ledger{
				ProductID:        "sku-1",
				Channel:          "web",
				Quantity:         tt.quantity,
				ReservedQuantity: tt.reserved,
			}

			assert.Equal(t, tt.expectedAvail, l.AvailableQuantity())
		})
	}
}

func TestReservation_Expired(t *testing.T) {
	now := time.Now()

	assert.False(t, Reservation{ExpiresAt: now.Add(time.Hour)}.Expired(now))
	assert.True(t, Reservation{ExpiresAt: now.Add(-time.Hour)}.Expired(now))
	// A zero ExpiresAt means no TTL.
	assert.False(t, Reservation{}.Expired(now))
}

func TestLedger_ExpiredReservations(t *testing.T) {
	now := time.Now()
	l := &Ledger{
		Reservations: map[string]Reservation{
			"corr-1": {CorrelationID: "corr-1", Amount: 5, ExpiresAt: now.Add(-time.Minute)},
			"corr-2": {CorrelationID: "corr-2", Amount: 3, ExpiresAt: now.Add(time.Minute)},
		},
	}

	expired := l.ExpiredReservations(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "corr-1", expired[0].CorrelationID)

	active := l.ActiveReservations(now)
	require.Len(t, active, 1)
	assert.Equal(t, "corr-2", active[0].CorrelationID)
}

// ============================================
// ApplyEvent Tests
// ============================================

func TestLedger_ApplyEvent_Reserved(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100

	expiresAt := time.Now().Add(time.Hour)
	event := makeEvent(t, l.GetID(), EventStockReserved, 1, StockReserved{
		ProductID:     "sku-1",
		Channel:       "web",
		Amount:        30,
		CorrelationID: "corr-1",
		ExpiresAt:     expiresAt,
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Equal(t, 100, l.Quantity)
	assert.Equal(t, 30, l.ReservedQuantity)
	assert.Equal(t, 70, l.AvailableQuantity())
	assert.Equal(t, 1, l.Version)

	r, ok := l.Reservations["corr-1"]
	require.True(t, ok)
	assert.Equal(t, 30, r.Amount)
	assert.Equal(t, "evt-test", r.EventID)
}

func TestLedger_ApplyEvent_Released(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100
	l.ReservedQuantity = 30
	l.Reservations = map[string]Reservation{
		"corr-1": {CorrelationID: "corr-1", Amount: 30},
	}

	event := makeEvent(t, l.GetID(), EventStockReleased, 1, StockReleased{
		Amount:        10,
		CorrelationID: "corr-1",
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Equal(t, 100, l.Quantity)
	assert.Equal(t, 20, l.ReservedQuantity)
	assert.Equal(t, 20, l.Reservations["corr-1"].Amount)
}

func TestLedger_ApplyEvent_Released_RemovesEmptyReservation(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100
	l.ReservedQuantity = 30
	l.Reservations = map[string]Reservation{
		"corr-1": {CorrelationID: "corr-1", Amount: 30},
	}

	event := makeEvent(t, l.GetID(), EventStockReleased, 1, StockReleased{
		Amount:        30,
		CorrelationID: "corr-1",
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Zero(t, l.ReservedQuantity)
	assert.NotContains(t, l.Reservations, "corr-1")
}

func TestLedger_ApplyEvent_Allocated(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100
	l.ReservedQuantity = 30
	l.Reservations = map[string]Reservation{
		"order-1": {CorrelationID: "order-1", Amount: 30},
	}

	event := makeEvent(t, l.GetID(), EventStockAllocated, 1, StockAllocated{
		Amount:  30,
		OrderID: "order-1",
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Equal(t, 70, l.Quantity)
	assert.Zero(t, l.ReservedQuantity)
	assert.Equal(t, 30, l.AllocatedQuantity)
	assert.Equal(t, 70, l.AvailableQuantity())
	assert.NotContains(t, l.Reservations, "order-1")
}

func TestLedger_ApplyEvent_Replenished(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 10

	event := makeEvent(t, l.GetID(), EventStockReplenished, 1, StockReplenished{
		Amount: 50,
		Source: "warehouse",
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Equal(t, 60, l.Quantity)
}

func TestLedger_ApplyEvent_Synced(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100
	l.ReservedQuantity = 20

	syncedAt := time.Now()
	event := makeEvent(t, l.GetID(), EventStockSynced, 1, StockSynced{
		PreviousQuantity: 100,
		TargetQuantity:   80,
		Delta:            -20,
		Source:           "warehouse",
		SyncedAt:         syncedAt,
	})

	require.NoError(t, l.ApplyEvent(event))

	assert.Equal(t, 80, l.Quantity)
	assert.Equal(t, 20, l.ReservedQuantity)
	assert.Equal(t, "warehouse", l.SyncSource)
	assert.True(t, l.LastSyncedAt.Equal(syncedAt))
}

func TestLedger_ApplyEvent_Synced_ClampsReserved(t *testing.T) {
	l := NewLedger("sku-1", "web")
	l.Quantity = 100
	l.ReservedQuantity = 50

	event := makeEvent(t, l.GetID(), EventStockSynced, 1, StockSynced{
		PreviousQuantity: 100,
		TargetQuantity:   30,
		Delta:            -70,
		Source:           "warehouse",
	})

	require.NoError(t, l.ApplyEvent(event))

	// An external count below the held amount must not leave reserved > quantity.
	assert.Equal(t, 30, l.Quantity)
	assert.Equal(t, 30, l.ReservedQuantity)
	assert.Zero(t, l.AvailableQuantity())
}

func TestLedger_ApplyEvent_MalformedData(t *testing.T) {
	l := NewLedger("sku-1", "web")

	event := store.Event{
		EventType: EventStockReserved,
		Data:      json.RawMessage(`{not json`),
		Version:   1,
	}

	assert.Error(t, l.ApplyEvent(event))
}

// ============================================
// Replay Tests
// ============================================

func TestReplay_FullLifecycle(t *testing.T) {
	aggregateID := AggregateID("sku-1", "web")
	events := []store.Event{
		makeEvent(t, aggregateID, EventStockReplenished, 1, StockReplenished{Amount: 100, Source: "warehouse"}),
		makeEvent(t, aggregateID, EventStockReserved, 2, StockReserved{Amount: 30, CorrelationID: "corr-1"}),
		makeEvent(t, aggregateID, EventStockReleased, 3, StockReleased{Amount: 10, CorrelationID: "corr-1"}),
		makeEvent(t, aggregateID, EventStockAllocated, 4, StockAllocated{Amount: 20, OrderID: "corr-1"}),
	}

	l, err := Replay(aggregateID, events)
	require.NoError(t, err)

	assert.Equal(t, "sku-1", l.ProductID)
	assert.Equal(t, "web", l.Channel)
	assert.Equal(t, 80, l.Quantity)
	assert.Zero(t, l.ReservedQuantity)
	assert.Equal(t, 20, l.AllocatedQuantity)
	assert.Equal(t, 4, l.Version)
}

func TestReplay_Deterministic(t *testing.T) {
	aggregateID := AggregateID("sku-1", "web")
	events := []store.Event{
		makeEvent(t, aggregateID, EventStockReplenished, 1, StockReplenished{Amount: 100}),
		makeEvent(t, aggregateID, EventStockReserved, 2, StockReserved{Amount: 40, CorrelationID: "corr-1"}),
		makeEvent(t, aggregateID, EventStockSynced, 3, StockSynced{TargetQuantity: 90, Source: "erp"}),
	}

	first, err := Replay(aggregateID, events)
	require.NoError(t, err)
	second, err := Replay(aggregateID, events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReplay_EmptyLog(t *testing.T) {
	l, err := Replay(AggregateID("sku-1", "web"), nil)
	require.NoError(t, err)

	assert.Zero(t, l.Quantity)
	assert.Zero(t, l.Version)
}

// ============================================
// Record Tests
// ============================================

func TestLedger_Record(t *testing.T) {
	now := time.Now()
	l := &Ledger{
		ProductID:         "sku-1",
		Channel:           "web",
		Quantity:          100,
		ReservedQuantity:  30,
		AllocatedQuantity: 10,
		Version:           7,
	}

	record := l.Record(now)

	assert.Equal(t, "sku-1:web", record.AggregateID)
	assert.Equal(t, 100, record.Quantity)
	assert.Equal(t, 30, record.ReservedQuantity)
	assert.Equal(t, 10, record.AllocatedQuantity)
	assert.Equal(t, 7, record.Version)
	assert.True(t, record.UpdatedAt.Equal(now))
}
