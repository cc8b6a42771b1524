package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/model"
)

// FinancialStatementRepo persists C1's financials fetch, keyed on
// (symbol, statement_type, period_end, period_type).
type FinancialStatementRepo struct {
	db *sqlx.DB
}

func NewFinancialStatementRepo(db *sqlx.DB) *FinancialStatementRepo {
	return &FinancialStatementRepo{db: db}
}

const upsertFinancialStatementSQL = `
INSERT INTO financial_statements (
	symbol, statement_type, period_end, period_type,
	revenue, net_income, eps, operating_cash_flow,
	total_assets, total_liabilities, total_debt, receivables, ingested_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (symbol, statement_type, period_end, period_type) DO UPDATE SET
	revenue = EXCLUDED.revenue, net_income = EXCLUDED.net_income, eps = EXCLUDED.eps,
	operating_cash_flow = EXCLUDED.operating_cash_flow, total_assets = EXCLUDED.total_assets,
	total_liabilities = EXCLUDED.total_liabilities, total_debt = EXCLUDED.total_debt,
	receivables = EXCLUDED.receivables, ingested_at = EXCLUDED.ingested_at
`

func (r *FinancialStatementRepo) Upsert(ctx context.Context, statements []model.FinancialStatement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertFinancialStatementSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range statements {
		if _, err := stmt.ExecContext(ctx,
			s.Symbol, string(s.Type), s.PeriodEnd, string(s.PeriodType),
			s.Revenue, s.NetIncome, s.EPS, s.OperatingCashFlow,
			s.TotalAssets, s.TotalLiabilities, s.TotalDebt, s.Receivables, s.IngestedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *FinancialStatementRepo) ListBySymbol(ctx context.Context, symbol string) ([]model.FinancialStatement, error) {
	const q = `
		SELECT symbol, statement_type, period_end, period_type,
		       revenue, net_income, eps, operating_cash_flow,
		       total_assets, total_liabilities, total_debt, receivables, ingested_at
		FROM financial_statements
		WHERE symbol = $1
		ORDER BY period_end DESC
	`
	var rows []model.FinancialStatement
	if err := r.db.SelectContext(ctx, &rows, q, symbol); err != nil {
		return nil, err
	}
	return rows, nil
}
