package growth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/model"
)

func ptr(v float64) *float64 { return &v }

func quarterly(periodEnd time.Time, revenue, netIncome, eps float64) model.FinancialStatement {
	return model.FinancialStatement{
		Type: model.StatementIncome, PeriodEnd: periodEnd, PeriodType: model.PeriodQuarterly,
		StatementLineItems: model.StatementLineItems{Revenue: ptr(revenue), NetIncome: ptr(netIncome), EPS: ptr(eps)},
	}
}

func TestCompute_YoYQuarterlyGrowth(t *testing.T) {
	q2023 := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
	q2024 := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	statements := []model.FinancialStatement{
		quarterly(q2023, 1000, 100, 1.0),
		quarterly(q2023.AddDate(0, 3, 0), 1050, 105, 1.05),
		quarterly(q2023.AddDate(0, 6, 0), 1100, 110, 1.1),
		quarterly(q2023.AddDate(0, 9, 0), 1150, 115, 1.15),
		quarterly(q2024, 1200, 150, 1.5),
	}

	result := Compute("AAPL", statements)
	require.Len(t, result, 1)
	require.NotNil(t, result[0].RevenueGrowth)
	require.InDelta(t, 0.2, *result[0].RevenueGrowth, 1e-9)
	require.InDelta(t, 0.5, *result[0].EarningsGrowth, 1e-9)
	require.InDelta(t, 0.5, *result[0].EPSGrowth, 1e-9)
}

func TestCompute_SkipsSilentlyWhenPriorMissing(t *testing.T) {
	q2024 := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	statements := []model.FinancialStatement{quarterly(q2024, 1200, 150, 1.5)}

	result := Compute("AAPL", statements)
	require.Empty(t, result)
}

func TestCompute_SkipsSilentlyWhenDenominatorZero(t *testing.T) {
	q2023 := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
	q2024 := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	statements := []model.FinancialStatement{
		quarterly(q2023, 1000, 0, 1.0),
		quarterly(q2023.AddDate(0, 3, 0), 1050, 105, 1.05),
		quarterly(q2023.AddDate(0, 6, 0), 1100, 110, 1.1),
		quarterly(q2023.AddDate(0, 9, 0), 1150, 115, 1.15),
		quarterly(q2024, 1200, 150, 1.5),
	}

	result := Compute("AAPL", statements)
	require.Len(t, result, 1)
	require.Nil(t, result[0].EarningsGrowth)
	require.NotNil(t, result[0].RevenueGrowth)
}
