package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/marketpipe/ingestor/internal/model"
)

// ValidationReportRepo persists C3's reports. Reports are immutable
// once written; Checks is serialised to the checks JSONB column since
// it has no natural columnar shape.
type ValidationReportRepo struct {
	db *sqlx.DB
}

func NewValidationReportRepo(db *sqlx.DB) *ValidationReportRepo {
	return &ValidationReportRepo{db: db}
}

const insertValidationReportSQL = `
INSERT INTO validation_reports (symbol, data_type, timestamp, overall_status, critical, warnings, rows_dropped, checks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING report_id
`

func (r *ValidationReportRepo) Save(ctx context.Context, report model.ValidationReport) (int64, error) {
	checksJSON, err := json.Marshal(report.Checks)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowxContext(ctx, insertValidationReportSQL,
		report.Symbol, report.DataType, report.Timestamp, string(report.OverallStatus),
		report.CriticalCount, report.WarningCount, report.RowsDropped, checksJSON,
	).Scan(&id)
	return id, err
}

func (r *ValidationReportRepo) Latest(ctx context.Context, symbol, dataType string) (*model.ValidationReport, error) {
	const q = `
		SELECT report_id, symbol, data_type, timestamp, overall_status, critical, warnings, rows_dropped, checks
		FROM validation_reports
		WHERE symbol = $1 AND data_type = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`
	row := r.db.QueryRowxContext(ctx, q, symbol, dataType)

	var (
		report     model.ValidationReport
		status     string
		checksJSON []byte
	)
	if err := row.Scan(&report.ReportID, &report.Symbol, &report.DataType, &report.Timestamp,
		&status, &report.CriticalCount, &report.WarningCount, &report.RowsDropped, &checksJSON); err != nil {
		return nil, err
	}
	report.OverallStatus = model.OverallStatus(status)
	if err := json.Unmarshal(checksJSON, &report.Checks); err != nil {
		return nil, err
	}
	return &report, nil
}
