// Package model defines the persistent entities shared across the
// ingestion pipeline: bars, indicators, financial statements and the
// orchestrator's own bookkeeping rows.
package model

import (
	"time"
)

// Frequency is the sampling frequency of a bar.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqIntraday  Frequency = "intraday"
)

// PeriodType distinguishes quarterly, annual and trailing-twelve-month
// financial statement periods.
type PeriodType string

const (
	PeriodQuarterly PeriodType = "Q"
	PeriodAnnual    PeriodType = "A"
	PeriodTTM       PeriodType = "TTM"
)

// Bar is one OHLCV observation for a symbol at a given frequency and date.
type Bar struct {
	Symbol     string    `db:"symbol" json:"symbol"`
	Date       time.Time `db:"date" json:"date"`
	Frequency  Frequency `db:"frequency" json:"frequency"`
	Open       float64   `db:"open" json:"open"`
	High       float64   `db:"high" json:"high"`
	Low        float64   `db:"low" json:"low"`
	Close      float64   `db:"close" json:"close"`
	Volume     int64     `db:"volume" json:"volume"`
	Source     string    `db:"source" json:"source"`
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

// Valid checks the bar invariant from the data model: high is the
// maximum of the four prices, low is the minimum, and close is positive.
func (b Bar) Valid() bool {
	if b.Close <= 0 {
		return false
	}
	maxOC := b.Open
	if b.Close > maxOC {
		maxOC = b.Close
	}
	minOC := b.Open
	if b.Close < minOC {
		minOC = b.Close
	}
	if b.High < maxOC || b.High < b.Low {
		return false
	}
	if b.Low > minOC {
		return false
	}
	return b.Volume >= 0
}

// RSIZone buckets an RSI reading into the qualitative zones the spec names.
type RSIZone string

const (
	RSIZoneOversold   RSIZone = "oversold"
	RSIZoneWeak       RSIZone = "weak"
	RSIZoneHealthy    RSIZone = "healthy"
	RSIZoneNeutral    RSIZone = "neutral"
	RSIZoneOverbought RSIZone = "overbought"
)

func ClassifyRSIZone(rsi float64) RSIZone {
	switch {
	case rsi < 30:
		return RSIZoneOversold
	case rsi < 45:
		return RSIZoneWeak
	case rsi < 60:
		return RSIZoneHealthy
	case rsi < 70:
		return RSIZoneNeutral
	default:
		return RSIZoneOverbought
	}
}

// IndicatorRow is the full set of technical indicators and derived flags
// for one symbol on one trading date.
type IndicatorRow struct {
	Symbol string    `db:"symbol" json:"symbol"`
	Date   time.Time `db:"date" json:"date"`

	SMA50  *float64 `db:"sma_50" json:"sma_50,omitempty"`
	SMA100 *float64 `db:"sma_100" json:"sma_100,omitempty"`
	SMA200 *float64 `db:"sma_200" json:"sma_200,omitempty"`

	EMA9  *float64 `db:"ema_9" json:"ema_9,omitempty"`
	EMA12 *float64 `db:"ema_12" json:"ema_12,omitempty"`
	EMA20 *float64 `db:"ema_20" json:"ema_20,omitempty"`
	EMA21 *float64 `db:"ema_21" json:"ema_21,omitempty"`
	EMA26 *float64 `db:"ema_26" json:"ema_26,omitempty"`
	EMA50 *float64 `db:"ema_50" json:"ema_50,omitempty"`

	RSI14 *float64 `db:"rsi_14" json:"rsi_14,omitempty"`

	MACDLine      *float64 `db:"macd_line" json:"macd_line,omitempty"`
	MACDSignal    *float64 `db:"macd_signal" json:"macd_signal,omitempty"`
	MACDHistogram *float64 `db:"macd_histogram" json:"macd_histogram,omitempty"`

	ATR14 *float64 `db:"atr_14" json:"atr_14,omitempty"`

	BollingerMid   *float64 `db:"bollinger_mid" json:"bollinger_mid,omitempty"`
	BollingerUpper *float64 `db:"bollinger_upper" json:"bollinger_upper,omitempty"`
	BollingerLower *float64 `db:"bollinger_lower" json:"bollinger_lower,omitempty"`

	VolumeMean20 *float64 `db:"volume_mean_20" json:"volume_mean_20,omitempty"`

	// Derived boolean flags, see spec §4.5.
	PriceAboveSMA200 *bool `db:"price_above_sma200" json:"price_above_sma200,omitempty"`
	PriceBelowSMA50  *bool `db:"price_below_sma50" json:"price_below_sma50,omitempty"`
	PriceBelowSMA200 *bool `db:"price_below_sma200" json:"price_below_sma200,omitempty"`

	EMA9AboveEMA21  *bool `db:"ema9_above_ema21" json:"ema9_above_ema21,omitempty"`
	EMA12AboveEMA26 *bool `db:"ema12_above_ema26" json:"ema12_above_ema26,omitempty"`
	EMA20AboveEMA50 *bool `db:"ema20_above_ema50" json:"ema20_above_ema50,omitempty"`

	SMA50AboveSMA200 *bool `db:"sma50_above_sma200" json:"sma50_above_sma200,omitempty"`

	MACDAboveSignal      *bool `db:"macd_above_signal" json:"macd_above_signal,omitempty"`
	MACDHistogramPositive *bool `db:"macd_histogram_positive" json:"macd_histogram_positive,omitempty"`

	RSIZone *RSIZone `db:"rsi_zone" json:"rsi_zone,omitempty"`

	VolumeAboveAverage *bool `db:"volume_above_average" json:"volume_above_average,omitempty"`
	VolumeSpike        *bool `db:"volume_spike" json:"volume_spike,omitempty"`

	HigherHighs *bool `db:"higher_highs" json:"higher_highs,omitempty"`
	HigherLows  *bool `db:"higher_lows" json:"higher_lows,omitempty"`
}

// StatementLineItems carries the verbatim provider fields used for growth
// computation; unrecognised fields are preserved through Extra.
type StatementLineItems struct {
	Revenue            *float64 `db:"revenue" json:"revenue,omitempty"`
	NetIncome          *float64 `db:"net_income" json:"net_income,omitempty"`
	EPS                *float64 `db:"eps" json:"eps,omitempty"`
	OperatingCashFlow  *float64 `db:"operating_cash_flow" json:"operating_cash_flow,omitempty"`
	TotalAssets        *float64 `db:"total_assets" json:"total_assets,omitempty"`
	TotalLiabilities   *float64 `db:"total_liabilities" json:"total_liabilities,omitempty"`
	TotalDebt          *float64 `db:"total_debt" json:"total_debt,omitempty"`
	Receivables        *float64 `db:"receivables" json:"receivables,omitempty"`
	Extra              map[string]float64 `db:"-" json:"extra,omitempty"`
}

// StatementType names the three financial-statement kinds the pipeline ingests.
type StatementType string

const (
	StatementIncome   StatementType = "income"
	StatementBalance  StatementType = "balance"
	StatementCashFlow StatementType = "cashflow"
)

// FinancialStatement is one reported period for one symbol and statement type.
type FinancialStatement struct {
	Symbol     string        `db:"symbol" json:"symbol"`
	Type       StatementType `db:"statement_type" json:"statement_type"`
	PeriodEnd  time.Time     `db:"period_end" json:"period_end"`
	PeriodType PeriodType    `db:"period_type" json:"period_type"`
	StatementLineItems
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

// EnhancedFundamentals is the denormalised latest-ratios-plus-growth view
// maintained by the growth engine (C7).
type EnhancedFundamentals struct {
	Symbol         string     `db:"symbol" json:"symbol"`
	AsOfDate       time.Time  `db:"as_of_date" json:"as_of_date"`
	RevenueGrowth  *float64   `db:"revenue_growth" json:"revenue_growth,omitempty"`
	EarningsGrowth *float64   `db:"earnings_growth" json:"earnings_growth,omitempty"`
	EPSGrowth      *float64   `db:"eps_growth" json:"eps_growth,omitempty"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// OverallStatus is the aggregate verdict of a ValidationReport.
type OverallStatus string

const (
	StatusPass    OverallStatus = "pass"
	StatusWarning OverallStatus = "warning"
	StatusFail    OverallStatus = "fail"
)

// Severity is how seriously a failed check should be treated.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is one concrete problem found by a check (e.g. one offending row).
type Issue struct {
	RowIndex int    `json:"row_index,omitempty"`
	Date     string `json:"date,omitempty"`
	Message  string `json:"message"`
}

// CheckResult is the outcome of running a single validation check.
type CheckResult struct {
	Name        string   `json:"name"`
	Passed      bool     `json:"passed"`
	Severity    Severity `json:"severity"`
	RowsChecked int      `json:"rows_checked"`
	RowsFailed  int      `json:"rows_failed"`
	Issues      []Issue  `json:"issues,omitempty"`
}

// ValidationReport is the persisted, immutable outcome of running the
// check battery over one fetched dataset.
type ValidationReport struct {
	ReportID        int64         `db:"report_id" json:"report_id"`
	Symbol          string        `db:"symbol" json:"symbol"`
	DataType        string        `db:"data_type" json:"data_type"`
	Timestamp       time.Time     `db:"timestamp" json:"timestamp"`
	OverallStatus   OverallStatus `db:"overall_status" json:"overall_status"`
	CriticalCount   int           `db:"critical" json:"critical"`
	WarningCount    int           `db:"warnings" json:"warnings"`
	RowsDropped     int           `db:"rows_dropped" json:"rows_dropped"`
	Checks          []CheckResult `db:"-" json:"checks"`
}
