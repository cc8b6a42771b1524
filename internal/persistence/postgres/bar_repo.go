package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketpipe/ingestor/internal/model"
	"github.com/marketpipe/ingestor/internal/persistence"
)

// BarRepo is the sole writer of the bars table (C4, the idempotent
// writer). Every insert goes through Save so the insert/update/skip
// decision table is enforced in one place.
type BarRepo struct {
	db *sqlx.DB
}

func NewBarRepo(db *sqlx.DB) *BarRepo {
	return &BarRepo{db: db}
}

const upsertBarSQL = `
INSERT INTO bars (symbol, date, frequency, open, high, low, close, volume, source, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (symbol, date, frequency) DO UPDATE SET
	open = EXCLUDED.open,
	high = EXCLUDED.high,
	low = EXCLUDED.low,
	close = EXCLUDED.close,
	volume = EXCLUDED.volume,
	source = EXCLUDED.source,
	ingested_at = EXCLUDED.ingested_at
WHERE $11 OR bars.ingested_at < EXCLUDED.ingested_at
RETURNING (xmax = 0) AS inserted
`

// Save applies the idempotent-writer decision table: a new
// (symbol, date, frequency) key is always inserted; an existing key is
// updated only when the incoming row's ingested_at is newer than the
// stored one, or when force is set; otherwise the row is skipped and
// counted as a duplicate prevented.
func (r *BarRepo) Save(ctx context.Context, symbol string, rows []model.Bar, frequency model.Frequency, source string, force bool) (persistence.SaveResult, error) {
	var result persistence.SaveResult

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertBarSQL)
	if err != nil {
		return result, err
	}
	defer stmt.Close()

	for _, bar := range rows {
		var inserted bool
		err := stmt.QueryRowContext(ctx,
			symbol, bar.Date, string(frequency),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			source, bar.IngestedAt, force,
		).Scan(&inserted)

		switch {
		case err == nil && inserted:
			result.Inserted++
		case err == nil && !inserted:
			result.Updated++
		case isNoRowsAffected(err):
			// WHERE clause rejected the update: the stored row is newer
			// or equal and force was not set.
			result.Skipped++
			result.DuplicatesPrevented++
		default:
			return result, err
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.SaveResult{}, err
	}
	return result, nil
}

// isNoRowsAffected reports whether err is the "no rows in result set"
// sentinel sqlx returns when an UPDATE's WHERE clause matches nothing,
// which is how the conditional upsert signals a skip rather than an
// error. lib/pq surfaces true constraint violations (duplicate key,
// check failures) as *pq.Error instead; those are not skips.
func isNoRowsAffected(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return false
	}
	return err.Error() == "sql: no rows in result set"
}

func (r *BarRepo) Latest(ctx context.Context, symbol string, frequency model.Frequency, limit int) ([]model.Bar, error) {
	const q = `
		SELECT symbol, date, open, high, low, close, volume, source, ingested_at
		FROM bars
		WHERE symbol = $1 AND frequency = $2
		ORDER BY date DESC
		LIMIT $3
	`
	var rows []model.Bar
	if err := r.db.SelectContext(ctx, &rows, q, symbol, string(frequency), limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BarRepo) Exists(ctx context.Context, symbol string, date time.Time, frequency model.Frequency) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM bars WHERE symbol = $1 AND date = $2 AND frequency = $3)`
	var exists bool
	err := r.db.QueryRowxContext(ctx, q, symbol, date, string(frequency)).Scan(&exists)
	return exists, err
}
