package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/inventory-ledger/internal/monitor"
	"github.com/example/inventory-ledger/internal/readmodel"
)

func newTestHandler(t *testing.T) (*Handler, *readmodel.MemoryView) {
	t.Helper()
	view := readmodel.NewMemoryView()
	h, err := NewHandler(view, nil, monitor.DefaultThresholds())
	require.NoError(t, err)
	return h, view
}

func seedModel(t *testing.T, view *readmodel.MemoryView, productID, channel string, quantity, reserved int) {
	t.Helper()
	err := view.Upsert(context.Background(), &readmodel.InventoryReadModel{
		AggregateID:       productID + ":" + channel,
		ProductID:         productID,
		Channel:           channel,
		Quantity:          quantity,
		ReservedQuantity:  reserved,
		AvailableQuantity: quantity - reserved,
		Version:           1,
	})
	require.NoError(t, err)
}

// ============================================
// Constructor Tests
// ============================================

func TestNewHandler_InvalidThresholds(t *testing.T) {
	_, err := NewHandler(readmodel.NewMemoryView(), nil, monitor.Thresholds{
		LowStockMargin:      3,
		CriticalStockMargin: 10,
		OverstockThreshold:  1000,
	})
	assert.Error(t, err)
}

// ============================================
// Get Tests
// ============================================

func TestHandler_Get(t *testing.T) {
	h, view := newTestHandler(t)
	seedModel(t, view, "sku-1", "web", 500, 50)

	stock, err := h.Get(context.Background(), "sku-1:web")
	require.NoError(t, err)
	assert.Equal(t, "sku-1", stock.ProductID)
	assert.Equal(t, 450, stock.AvailableQuantity)
	assert.Equal(t, monitor.StatusInStock, stock.StockStatus)
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Get(context.Background(), "missing:web")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandler_Get_StatusClassification(t *testing.T) {
	h, view := newTestHandler(t)

	tests := []struct {
		name     string
		quantity int
		reserved int
		want     string
	}{
		{"plenty available", 500, 50, monitor.StatusInStock},
		{"fully reserved", 50, 50, monitor.StatusOutOfStock},
		{"critical margin", 12, 10, monitor.StatusCriticalStock},
		{"low margin", 25, 10, monitor.StatusLowStock},
		{"overstocked", 2000, 10, monitor.StatusOverstocked},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "sku-" + string(rune('a'+i))
			seedModel(t, view, id, "web", tt.quantity, tt.reserved)
			stock, err := h.Get(context.Background(), id+":web")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stock.StockStatus)
		})
	}
}

// ============================================
// List Tests
// ============================================

func TestHandler_List(t *testing.T) {
	h, view := newTestHandler(t)
	seedModel(t, view, "sku-1", "web", 100, 0)
	seedModel(t, view, "sku-1", "retail", 50, 0)
	seedModel(t, view, "sku-2", "web", 0, 0)

	stocks, err := h.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stocks, 3)
	for _, s := range stocks {
		assert.NotEmpty(t, s.StockStatus)
	}
}

func TestHandler_ListByProduct(t *testing.T) {
	h, view := newTestHandler(t)
	seedModel(t, view, "sku-1", "web", 100, 0)
	seedModel(t, view, "sku-1", "retail", 50, 0)
	seedModel(t, view, "sku-2", "web", 10, 0)

	stocks, err := h.ListByProduct(context.Background(), "sku-1")
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	for _, s := range stocks {
		assert.Equal(t, "sku-1", s.ProductID)
	}
}

func TestHandler_ListByProduct_Empty(t *testing.T) {
	h, _ := newTestHandler(t)

	stocks, err := h.ListByProduct(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, stocks)
}

// ============================================
// Available Tests
// ============================================

func TestHandler_Available_FromView(t *testing.T) {
	// No cache configured; availability comes straight from the read model.
	h, view := newTestHandler(t)
	seedModel(t, view, "sku-1", "web", 100, 30)

	available, err := h.Available(context.Background(), "sku-1:web")
	require.NoError(t, err)
	assert.Equal(t, 70, available)
}

func TestHandler_Available_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Available(context.Background(), "missing:web")
	assert.ErrorIs(t, err, ErrNotFound)
}
