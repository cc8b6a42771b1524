package gates

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/model"
)

func f(v float64) *float64 { return &v }

func TestIngestionGate_FailsWithNoBar(t *testing.T) {
	r := IngestionGate(false, nil)
	require.False(t, r.Passed)
	require.Equal(t, "RETRY", string(r.Action))
}

func TestIngestionGate_FailsOnFailedReport(t *testing.T) {
	report := &model.ValidationReport{OverallStatus: model.StatusFail}
	r := IngestionGate(true, report)
	require.False(t, r.Passed)
	require.Equal(t, "FIX_DATA_QUALITY", string(r.Action))
}

func TestIngestionGate_PassesWithBarAndWarningReport(t *testing.T) {
	report := &model.ValidationReport{OverallStatus: model.StatusWarning}
	r := IngestionGate(true, report)
	require.True(t, r.Passed)
}

func TestIndicatorGate_FailsWhenRSIMissing(t *testing.T) {
	row := &model.IndicatorRow{EMA9: f(1), SMA200: f(2)}
	r := IndicatorGate(row)
	require.False(t, r.Passed)
}

func TestIndicatorGate_PassesWithAllThreeIndicators(t *testing.T) {
	row := &model.IndicatorRow{EMA9: f(1), SMA200: f(2), RSI14: f(50)}
	r := IndicatorGate(row)
	require.True(t, r.Passed)
}

func TestSignalReadinessGate_ReadyWhenAllConditionsMet(t *testing.T) {
	cfg := config.DefaultSignalReadinessConfig()["swing_trend"]
	row := &model.IndicatorRow{EMA9: f(1), EMA21: f(1), SMA50: f(1), RSI14: f(1), MACDLine: f(1), MACDSignal: f(1), ATR14: f(1)}
	r := SignalReadinessGate(cfg, row, 250, 0.9)
	require.Equal(t, Ready, r.Verdict)
}

func TestSignalReadinessGate_PartialWhenSomeIndicatorsMissing(t *testing.T) {
	cfg := config.DefaultSignalReadinessConfig()["swing_trend"]
	row := &model.IndicatorRow{EMA9: f(1), EMA21: f(1), SMA50: f(1), RSI14: f(1)} // missing MACD, ATR
	r := SignalReadinessGate(cfg, row, 250, 0.9)
	require.Equal(t, Partial, r.Verdict)
	require.ElementsMatch(t, []string{"MACD", "ATR"}, r.MissingIndicators)
}

func TestSignalReadinessGate_NotReadyWhenNoIndicatorsPresent(t *testing.T) {
	cfg := config.DefaultSignalReadinessConfig()["technical"]
	r := SignalReadinessGate(cfg, nil, 250, 0.9)
	require.Equal(t, NotReady, r.Verdict)
	require.Equal(t, "SKIP", string(r.Action))
}
