package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/inventory-ledger/internal/infrastructure/store"
)

const AggregateType = "InventoryLedger"

var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInsufficientAvailability = errors.New("insufficient available stock")
	ErrInsufficientReserved     = errors.New("insufficient reserved stock")
	ErrSourceNotAllowed         = errors.New("sync source not allowed")
	ErrConcurrencyConflict      = errors.New("concurrent modification, retries exhausted")
)

// AggregateID builds the id for one product x channel pair
func AggregateID(productID, channel string) string {
	return productID + ":" + channel
}

// SplitAggregateID is the inverse of AggregateID
func SplitAggregateID(aggregateID string) (productID, channel string) {
	if i := strings.LastIndex(aggregateID, ":"); i >= 0 {
		return aggregateID[:i], aggregateID[i+1:]
	}
	return aggregateID, ""
}

// Reservation is an active hold against available stock. EventID is the id
// of the StockReserved event that opened (or last grew) the hold; releases
// carry it as their causation.
type Reservation struct {
	CorrelationID string    `json:"correlation_id"`
	Amount        int       `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	EventID       string    `json:"event_id,omitempty"`
}

// Expired reports whether the reservation's TTL has elapsed
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Ledger is the inventory state for one product x channel pair. It is
// rebuilt by folding events and holds the invariant
// 0 <= ReservedQuantity <= Quantity.
type Ledger struct {
	ProductID         string                 `json:"product_id"`
	Channel           string                 `json:"channel"`
	Quantity          int                    `json:"quantity"`
	ReservedQuantity  int                    `json:"reserved_quantity"`
	AllocatedQuantity int                    `json:"allocated_quantity"`
	LowStockThreshold int                    `json:"low_stock_threshold"`
	LastSyncedAt      time.Time              `json:"last_synced_at"`
	SyncSource        string                 `json:"sync_source,omitempty"`
	Version           int                    `json:"version"`
	Reservations      map[string]Reservation `json:"reservations,omitempty"`
}

func NewLedger(productID, channel string) *Ledger {
	return &Ledger{
		ProductID: productID,
		Channel:   channel,
	}
}

func (l *Ledger) GetID() string {
	return AggregateID(l.ProductID, l.Channel)
}

func (l *Ledger) GetVersion() int {
	return l.Version
}

// AvailableQuantity is the stock not held by reservations
func (l *Ledger) AvailableQuantity() int {
	return l.Quantity - l.ReservedQuantity
}

// ActiveReservations returns holds that have not expired at now
func (l *Ledger) ActiveReservations(now time.Time) []Reservation {
	var active []Reservation
	for _, r := range l.Reservations {
		if !r.Expired(now) {
			active = append(active, r)
		}
	}
	return active
}

// ExpiredReservations returns holds whose TTL elapsed before now
func (l *Ledger) ExpiredReservations(now time.Time) []Reservation {
	var expired []Reservation
	for _, r := range l.Reservations {
		if r.Expired(now) {
			expired = append(expired, r)
		}
	}
	return expired
}

// ApplyEvent folds a single event into the ledger state
func (l *Ledger) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventStockReserved:
		var data StockReserved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		l.ReservedQuantity += data.Amount
		l.addReservation(Reservation{
			CorrelationID: data.CorrelationID,
			Amount:        data.Amount,
			ExpiresAt:     data.ExpiresAt,
			EventID:       event.ID,
		})

	case EventStockReleased:
		var data StockReleased
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		l.ReservedQuantity -= data.Amount
		if l.ReservedQuantity < 0 {
			l.ReservedQuantity = 0
		}
		l.reduceReservation(data.CorrelationID, data.Amount)

	case EventStockAllocated:
		var data StockAllocated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		l.ReservedQuantity -= data.Amount
		l.Quantity -= data.Amount
		l.AllocatedQuantity += data.Amount
		if l.ReservedQuantity < 0 {
			l.ReservedQuantity = 0
		}
		if l.Quantity < 0 {
			l.Quantity = 0
		}
		l.reduceReservation(data.OrderID, data.Amount)

	case EventStockReplenished:
		var data StockReplenished
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		l.Quantity += data.Amount

	case EventStockSynced:
		var data StockSynced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		l.Quantity = data.TargetQuantity
		l.LastSyncedAt = data.SyncedAt
		l.SyncSource = data.Source
		// An external count below the held amount would break the
		// reserved <= quantity invariant; clamp the holds down.
		if l.ReservedQuantity > l.Quantity {
			l.ReservedQuantity = l.Quantity
		}
	}
	l.Version = event.Version
	return nil
}

func (l *Ledger) addReservation(r Reservation) {
	if r.CorrelationID == "" {
		return
	}
	if l.Reservations == nil {
		l.Reservations = make(map[string]Reservation)
	}
	if existing, ok := l.Reservations[r.CorrelationID]; ok {
		existing.Amount += r.Amount
		existing.ExpiresAt = r.ExpiresAt
		existing.EventID = r.EventID
		l.Reservations[r.CorrelationID] = existing
		return
	}
	l.Reservations[r.CorrelationID] = r
}

func (l *Ledger) reduceReservation(correlationID string, amount int) {
	r, ok := l.Reservations[correlationID]
	if !ok {
		return
	}
	r.Amount -= amount
	if r.Amount <= 0 {
		delete(l.Reservations, correlationID)
		return
	}
	l.Reservations[correlationID] = r
}

// Replay rebuilds a ledger from scratch by folding events in order
func Replay(aggregateID string, events []store.Event) (*Ledger, error) {
	productID, channel := SplitAggregateID(aggregateID)
	l := NewLedger(productID, channel)
	for _, event := range events {
		if err := l.ApplyEvent(event); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Record converts the ledger into its cached row form
func (l *Ledger) Record(now time.Time) *store.InventoryRecord {
	return &store.InventoryRecord{
		AggregateID:       l.GetID(),
		ProductID:         l.ProductID,
		Channel:           l.Channel,
		Quantity:          l.Quantity,
		ReservedQuantity:  l.ReservedQuantity,
		AllocatedQuantity: l.AllocatedQuantity,
		Version:           l.Version,
		LowStockThreshold: l.LowStockThreshold,
		LastSyncedAt:      l.LastSyncedAt,
		SyncSource:        l.SyncSource,
		UpdatedAt:         now,
	}
}
