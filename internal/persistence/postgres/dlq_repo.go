package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/persistence"
)

// DLQRepo implements the dead-letter queue (C11): entries are never
// silently discarded, only ever added, listed and marked resolved.
type DLQRepo struct {
	db *sqlx.DB
}

func NewDLQRepo(db *sqlx.DB) *DLQRepo {
	return &DLQRepo{db: db}
}

func (r *DLQRepo) AddFailedItem(ctx context.Context, item persistence.DLQItem) (int64, error) {
	const q = `
		INSERT INTO dlq_items (symbol, stage, error_message, context, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowxContext(ctx, q, item.Symbol, item.Stage, item.ErrorMessage, item.Context, item.CreatedAt).Scan(&id)
	return id, err
}

func (r *DLQRepo) GetUnresolved(ctx context.Context) ([]persistence.DLQItem, error) {
	const q = `
		SELECT id, symbol, stage, error_message, context, created_at, resolved
		FROM dlq_items
		WHERE NOT resolved
		ORDER BY created_at
	`
	var items []persistence.DLQItem
	if err := r.db.SelectContext(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *DLQRepo) MarkResolved(ctx context.Context, id int64) error {
	const q = `UPDATE dlq_items SET resolved = true WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
