package store

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// InventoryRecord is the cached row for one product x channel aggregate.
// It is a read optimization only: the event log stays authoritative and the
// row must always be reconstructable by replay.
type InventoryRecord struct {
	AggregateID       string    `json:"aggregate_id"`
	ProductID         string    `json:"product_id"`
	Channel           string    `json:"channel"`
	Quantity          int       `json:"quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	AllocatedQuantity int       `json:"allocated_quantity"`
	Version           int       `json:"version"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastSyncedAt      time.Time `json:"last_synced_at"`
	SyncSource        string    `json:"sync_source"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RecordStoreInterface defines the interface for cached inventory records
type RecordStoreInterface interface {
	// Save upserts a record; stale writes (version at or below the stored one)
	// are dropped so a delayed writer cannot clobber a newer row
	Save(ctx context.Context, record *InventoryRecord) error

	// Get returns the record for an aggregate, nil if absent
	Get(ctx context.Context, aggregateID string) (*InventoryRecord, error)

	// List returns all records
	List(ctx context.Context) ([]*InventoryRecord, error)

	// Delete removes a record when the product/channel association is dropped
	Delete(ctx context.Context, aggregateID string) error
}

// RecordStore is an in-memory record store
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]InventoryRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]InventoryRecord)}
}

func (rs *RecordStore) Save(ctx context.Context, record *InventoryRecord) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if existing, ok := rs.records[record.AggregateID]; ok && existing.Version >= record.Version {
		return nil
	}
	rs.records[record.AggregateID] = *record
	return nil
}

func (rs *RecordStore) Get(ctx context.Context, aggregateID string) (*InventoryRecord, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	record, ok := rs.records[aggregateID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (rs *RecordStore) List(ctx context.Context) ([]*InventoryRecord, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	records := make([]*InventoryRecord, 0, len(rs.records))
	for id := range rs.records {
		record := rs.records[id]
		records = append(records, &record)
	}
	return records, nil
}

func (rs *RecordStore) Delete(ctx context.Context, aggregateID string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.records, aggregateID)
	return nil
}

// PostgresRecordStore stores cached inventory records in PostgreSQL
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (rs *PostgresRecordStore) Save(ctx context.Context, record *InventoryRecord) error {
	_, err := rs.db.ExecContext(ctx,
		`INSERT INTO inventory_records
		 (aggregate_id, product_id, channel, quantity, reserved_quantity, allocated_quantity,
		  version, low_stock_threshold, last_synced_at, sync_source, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (aggregate_id) DO UPDATE SET
			 quantity = EXCLUDED.quantity,
			 reserved_quantity = EXCLUDED.reserved_quantity,
			 allocated_quantity = EXCLUDED.allocated_quantity,
			 version = EXCLUDED.version,
			 low_stock_threshold = EXCLUDED.low_stock_threshold,
			 last_synced_at = EXCLUDED.last_synced_at,
			 sync_source = EXCLUDED.sync_source,
			 updated_at = EXCLUDED.updated_at
		 WHERE inventory_records.version < EXCLUDED.version`,
		record.AggregateID,
		record.ProductID,
		record.Channel,
		record.Quantity,
		record.ReservedQuantity,
		record.AllocatedQuantity,
		record.Version,
		record.LowStockThreshold,
		record.LastSyncedAt,
		record.SyncSource,
		record.UpdatedAt,
	)
	return err
}

func (rs *PostgresRecordStore) Get(ctx context.Context, aggregateID string) (*InventoryRecord, error) {
	var r InventoryRecord
	err := rs.db.QueryRowContext(ctx,
		`SELECT aggregate_id, product_id, channel, quantity, reserved_quantity, allocated_quantity,
		        version, low_stock_threshold, last_synced_at, sync_source, updated_at
		 FROM inventory_records
		 WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&r.AggregateID, &r.ProductID, &r.Channel, &r.Quantity, &r.ReservedQuantity,
		&r.AllocatedQuantity, &r.Version, &r.LowStockThreshold, &r.LastSyncedAt,
		&r.SyncSource, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (rs *PostgresRecordStore) List(ctx context.Context) ([]*InventoryRecord, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT aggregate_id, product_id, channel, quantity, reserved_quantity, allocated_quantity,
		        version, low_stock_threshold, last_synced_at, sync_source, updated_at
		 FROM inventory_records
		 ORDER BY aggregate_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*InventoryRecord
	for rows.Next() {
		var r InventoryRecord
		if err := rows.Scan(&r.AggregateID, &r.ProductID, &r.Channel, &r.Quantity,
			&r.ReservedQuantity, &r.AllocatedQuantity, &r.Version, &r.LowStockThreshold,
			&r.LastSyncedAt, &r.SyncSource, &r.UpdatedAt); err != nil {
			continue
		}
		records = append(records, &r)
	}
	return records, nil
}

func (rs *PostgresRecordStore) Delete(ctx context.Context, aggregateID string) error {
	_, err := rs.db.ExecContext(ctx,
		"DELETE FROM inventory_records WHERE aggregate_id = $1",
		aggregateID,
	)
	return err
}
