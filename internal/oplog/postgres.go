package oplog

import (
	"context"
	"database/sql"
)

// PostgresSink persists operation entries to the operation_log table.
// Writes are best effort; the table is observability data, not state.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operation_log (operation_type, aggregate_id, amount, success, failure_reason, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.OperationType,
		entry.AggregateID,
		entry.Amount,
		entry.Success,
		entry.FailureReason,
		entry.Duration.Milliseconds(),
		entry.Timestamp,
	)
	return err
}
