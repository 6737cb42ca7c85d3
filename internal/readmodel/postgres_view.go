package readmodel

import (
	"context"
	"database/sql"
)

// PostgresView stores inventory read models in PostgreSQL
type PostgresView struct {
	db *sql.DB
}

func NewPostgresView(db *sql.DB) *PostgresView {
	return &PostgresView{db: db}
}

func (v *PostgresView) Upsert(ctx context.Context, model *InventoryReadModel) error {
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO inventory_read_models
		 (aggregate_id, product_id, channel, quantity, reserved_quantity, allocated_quantity,
		  available_quantity, last_event_type, last_synced_at, sync_source, version, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (aggregate_id) DO UPDATE SET
			 quantity = EXCLUDED.quantity,
			 reserved_quantity = EXCLUDED.reserved_quantity,
			 allocated_quantity = EXCLUDED.allocated_quantity,
			 available_quantity = EXCLUDED.available_quantity,
			 last_event_type = EXCLUDED.last_event_type,
			 last_synced_at = EXCLUDED.last_synced_at,
			 sync_source = EXCLUDED.sync_source,
			 version = EXCLUDED.version,
			 updated_at = EXCLUDED.updated_at
		 WHERE inventory_read_models.version < EXCLUDED.version`,
		model.AggregateID,
		model.ProductID,
		model.Channel,
		model.Quantity,
		model.ReservedQuantity,
		model.AllocatedQuantity,
		model.AvailableQuantity,
		model.LastEventType,
		model.LastSyncedAt,
		model.SyncSource,
		model.Version,
		model.UpdatedAt,
	)
	return err
}

func (v *PostgresView) Get(ctx context.Context, aggregateID string) (*InventoryReadModel, bool, error) {
	var m InventoryReadModel
	err := v.db.QueryRowContext(ctx, selectColumns+" WHERE aggregate_id = $1", aggregateID).
		Scan(scanTargets(&m)...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &m, true, nil
}

func (v *PostgresView) List(ctx context.Context) ([]*InventoryReadModel, error) {
	rows, err := v.db.QueryContext(ctx, selectColumns+" ORDER BY aggregate_id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModels(rows)
}

func (v *PostgresView) ListByProduct(ctx context.Context, productID string) ([]*InventoryReadModel, error) {
	rows, err := v.db.QueryContext(ctx, selectColumns+" WHERE product_id = $1 ORDER BY channel ASC", productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModels(rows)
}

func (v *PostgresView) Delete(ctx context.Context, aggregateID string) error {
	_, err := v.db.ExecContext(ctx,
		"DELETE FROM inventory_read_models WHERE aggregate_id = $1",
		aggregateID,
	)
	return err
}

const selectColumns = `SELECT aggregate_id, product_id, channel, quantity, reserved_quantity,
	allocated_quantity, available_quantity, last_event_type, last_synced_at, sync_source,
	version, updated_at
	FROM inventory_read_models`

func scanTargets(m *InventoryReadModel) []any {
	return []any{
		&m.AggregateID, &m.ProductID, &m.Channel, &m.Quantity, &m.ReservedQuantity,
		&m.AllocatedQuantity, &m.AvailableQuantity, &m.LastEventType, &m.LastSyncedAt,
		&m.SyncSource, &m.Version, &m.UpdatedAt,
	}
}

func scanModels(rows *sql.Rows) ([]*InventoryReadModel, error) {
	var models []*InventoryReadModel
	for rows.Next() {
		var m InventoryReadModel
		if err := rows.Scan(scanTargets(&m)...); err != nil {
			continue
		}
		models = append(models, &m)
	}
	return models, rows.Err()
}
