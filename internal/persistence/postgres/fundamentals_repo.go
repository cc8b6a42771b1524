package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/model"
)

// EnhancedFundamentalsRepo persists C7's one-row-per-symbol growth view.
type EnhancedFundamentalsRepo struct {
	db *sqlx.DB
}

func NewEnhancedFundamentalsRepo(db *sqlx.DB) *EnhancedFundamentalsRepo {
	return &EnhancedFundamentalsRepo{db: db}
}

const upsertEnhancedFundamentalsSQL = `
INSERT INTO enhanced_fundamentals (symbol, as_of_date, revenue_growth, earnings_growth, eps_growth, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (symbol) DO UPDATE SET
	as_of_date = EXCLUDED.as_of_date,
	revenue_growth = EXCLUDED.revenue_growth,
	earnings_growth = EXCLUDED.earnings_growth,
	eps_growth = EXCLUDED.eps_growth,
	updated_at = EXCLUDED.updated_at
`

func (r *EnhancedFundamentalsRepo) Upsert(ctx context.Context, f model.EnhancedFundamentals) error {
	_, err := r.db.ExecContext(ctx, upsertEnhancedFundamentalsSQL,
		f.Symbol, f.AsOfDate, f.RevenueGrowth, f.EarningsGrowth, f.EPSGrowth, f.UpdatedAt)
	return err
}

func (r *EnhancedFundamentalsRepo) Get(ctx context.Context, symbol string) (*model.EnhancedFundamentals, error) {
	const q = `SELECT * FROM enhanced_fundamentals WHERE symbol = $1`
	var f model.EnhancedFundamentals
	if err := r.db.GetContext(ctx, &f, q, symbol); err != nil {
		return nil, err
	}
	return &f, nil
}
