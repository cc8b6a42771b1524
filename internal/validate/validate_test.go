package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }

func day(offset int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func cleanRows(n int) []RawRow {
	rows := make([]RawRow, n)
	price := 100.0
	for k := 0; k < n; k++ {
		rows[k] = RawRow{Date: day(k), Open: f(price), High: f(price + 1), Low: f(price - 1), Close: f(price), Volume: i(1_000_000)}
		price += 0.1
	}
	return rows
}

func TestValidate_PassOnCleanData(t *testing.T) {
	v := New(nil)
	report := v.Validate("AAPL", "price_history", cleanRows(250))
	require.Equal(t, "pass", string(report.OverallStatus))
	require.Zero(t, report.CriticalCount)
}

func TestValidate_MissingValuesWarningBelowThreshold(t *testing.T) {
	rows := cleanRows(100)
	rows[5].Close = nil // 1% of rows, below 10% critical threshold

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	require.Equal(t, "warning", string(report.OverallStatus))
}

func TestValidate_MissingValuesCriticalAboveThreshold(t *testing.T) {
	rows := cleanRows(100)
	for i := 0; i < 15; i++ { // 15% of rows, above 10% critical threshold
		rows[i].Close = nil
	}

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	require.Equal(t, "fail", string(report.OverallStatus))
}

func TestValidate_RangeCheckCatchesNegativeClose(t *testing.T) {
	rows := cleanRows(50)
	rows[10].Close = f(-5.0)

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	require.Equal(t, "fail", string(report.OverallStatus))
}

func TestValidate_RangeCheckCatchesHighBelowLow(t *testing.T) {
	rows := cleanRows(50)
	rows[10].High = f(10)
	rows[10].Low = f(20)

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	require.Equal(t, "fail", string(report.OverallStatus))
}

func TestValidate_DuplicateDates(t *testing.T) {
	rows := cleanRows(50)
	rows[10].Date = rows[9].Date

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	// 1 of 50 is 2%, below the 5% critical threshold
	require.Equal(t, "warning", string(report.OverallStatus))
}

func TestValidate_ContinuityGapWarning(t *testing.T) {
	rows := cleanRows(10)
	rows[5].Date = rows[4].Date.AddDate(0, 0, 10) // 10-day gap
	for k := 6; k < len(rows); k++ {
		rows[k].Date = rows[k].Date.AddDate(0, 0, 9)
	}

	v := New(nil)
	report := v.Validate("AAPL", "price_history", rows)
	require.Equal(t, "warning", string(report.OverallStatus))
}

func TestValidate_IndicatorDataCriticalWhenInsufficientBars(t *testing.T) {
	v := New([]RequiredIndicator{{Name: "sma_200", MinPeriods: 200}})
	report := v.Validate("AAPL", "price_history", cleanRows(199))
	require.Equal(t, "fail", string(report.OverallStatus))
}

func TestValidateAndClean_DropsNullAndRangeViolatingRows(t *testing.T) {
	rows := cleanRows(20)
	rows[3].Close = nil
	rows[7].Close = f(-1)
	rows[12].Date = rows[11].Date // duplicate

	v := New(nil)
	cleaned, report := v.ValidateAndClean("AAPL", "price_history", rows)

	require.Equal(t, 17, len(cleaned))
	require.Equal(t, 3, report.RowsDropped)
}

func TestValidateAndClean_KeepsFirstOfDuplicateDates(t *testing.T) {
	rows := cleanRows(5)
	rows[2].Date = rows[1].Date

	v := New(nil)
	cleaned, _ := v.ValidateAndClean("AAPL", "price_history", rows)
	require.Equal(t, 4, len(cleaned))
	require.Equal(t, rows[1].Date, cleaned[1].Date)
}
