package ledger

import "time"

const (
	EventStockReserved    = "StockReserved"
	EventStockReleased    = "StockReleased"
	EventStockAllocated   = "StockAllocated"
	EventStockReplenished = "StockReplenished"
	EventStockSynced      = "StockSynced"
)

type StockReserved struct {
	ProductID      string    `json:"product_id"`
	Channel        string    `json:"channel"`
	Amount         int       `json:"amount"`
	QuantityAfter  int       `json:"quantity_after"`
	ReservedAfter  int       `json:"reserved_after"`
	AllocatedAfter int       `json:"allocated_after"`
	CorrelationID  string    `json:"correlation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	ReservedAt     time.Time `json:"reserved_at"`
}

type StockReleased struct {
	ProductID      string    `json:"product_id"`
	Channel        string    `json:"channel"`
	Amount         int       `json:"amount"`
	QuantityAfter  int       `json:"quantity_after"`
	ReservedAfter  int       `json:"reserved_after"`
	AllocatedAfter int       `json:"allocated_after"`
	CorrelationID  string    `json:"correlation_id"`
	CausationID    string    `json:"causation_id,omitempty"`
	Reason         string    `json:"reason"`
	ReleasedAt     time.Time `json:"released_at"`
}

type StockAllocated struct {
	ProductID      string    `json:"product_id"`
	Channel        string    `json:"channel"`
	Amount         int       `json:"amount"`
	QuantityAfter  int       `json:"quantity_after"`
	ReservedAfter  int       `json:"reserved_after"`
	AllocatedAfter int       `json:"allocated_after"`
	OrderID        string    `json:"order_id"`
	ShipmentID     string    `json:"shipment_id,omitempty"`
	AllocatedAt    time.Time `json:"allocated_at"`
}

type StockReplenished struct {
	ProductID      string            `json:"product_id"`
	Channel        string            `json:"channel"`
	Amount         int               `json:"amount"`
	QuantityAfter  int               `json:"quantity_after"`
	ReservedAfter  int               `json:"reserved_after"`
	AllocatedAfter int               `json:"allocated_after"`
	Source         string            `json:"source"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ReplenishedAt  time.Time         `json:"replenished_at"`
}

type StockSynced struct {
	ProductID        string    `json:"product_id"`
	Channel          string    `json:"channel"`
	PreviousQuantity int       `json:"previous_quantity"`
	TargetQuantity   int       `json:"target_quantity"`
	Delta            int       `json:"delta"`
	ReservedAfter    int       `json:"reserved_after"`
	AllocatedAfter   int       `json:"allocated_after"`
	Source           string    `json:"source"`
	SyncedAt         time.Time `json:"synced_at"`
}
