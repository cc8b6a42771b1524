package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

func makeBars(n int, start float64, step float64) []model.Bar {
	bars := make([]model.Bar, n)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		bars[i] = model.Bar{
			Symbol: "TEST", Date: date.AddDate(0, 0, i),
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1_000_000,
		}
		price += step
	}
	return bars
}

func TestCompute_SMA200NullBelow200Bars(t *testing.T) {
	bars := makeBars(199, 100, 0.1)
	rows := Compute(bars, nil)
	if rows[198].SMA200 != nil {
		t.Error("SMA200 should be null with only 199 bars")
	}
}

func TestCompute_SMA200PresentAt200Bars(t *testing.T) {
	bars := makeBars(200, 100, 0.1)
	rows := Compute(bars, nil)
	if rows[199].SMA200 == nil {
		t.Fatal("SMA200 should be present with 200 bars")
	}
}

func TestCompute_RSIWithinBounds(t *testing.T) {
	bars := makeBars(30, 100, 0.5)
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.RSI14 == nil {
		t.Fatal("RSI14 should be valid with sufficient data")
	}
	if *last.RSI14 < 0 || *last.RSI14 > 100 {
		t.Errorf("RSI should be between 0 and 100, got %.2f", *last.RSI14)
	}
}

func TestCompute_RSIAllGainsIs100(t *testing.T) {
	bars := makeBars(30, 100, 1.0) // strictly increasing closes
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.RSI14 == nil || *last.RSI14 != 100.0 {
		t.Errorf("expected RSI 100 for an all-gains series, got %v", last.RSI14)
	}
}

func TestCompute_MACDHistogramSignOfLineMinusSignal(t *testing.T) {
	bars := makeBars(60, 100, 0.3)
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.MACDLine == nil || last.MACDSignal == nil || last.MACDHistogram == nil {
		t.Fatal("MACD fields should be populated with 60 bars")
	}
	want := *last.MACDLine - *last.MACDSignal
	if math.Abs(want-*last.MACDHistogram) > 1e-9 {
		t.Errorf("histogram should equal line-signal, got %v want %v", *last.MACDHistogram, want)
	}
}

func TestCompute_ATRNeverNegative(t *testing.T) {
	bars := makeBars(30, 100, -0.2)
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.ATR14 == nil {
		t.Fatal("ATR14 should be valid with sufficient data")
	}
	if *last.ATR14 < 0 {
		t.Errorf("ATR should never be negative, got %v", *last.ATR14)
	}
}

func TestCompute_BollingerBandsStraddleMid(t *testing.T) {
	bars := makeBars(25, 100, 0.2)
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.BollingerMid == nil || last.BollingerUpper == nil || last.BollingerLower == nil {
		t.Fatal("bollinger fields should be populated with 25 bars")
	}
	if *last.BollingerUpper < *last.BollingerMid || *last.BollingerLower > *last.BollingerMid {
		t.Error("bollinger bands should straddle the mid line")
	}
}

func TestCompute_GapBridgesEMAButRenullsOutput(t *testing.T) {
	bars := makeBars(250, 100, 0.1)
	gaps := make([]bool, 250)
	gaps[125] = true // single null close in the middle

	rows := Compute(bars, gaps)

	if rows[125].EMA9 != nil {
		t.Error("gapped position should be re-nulled on output")
	}
	if rows[124].EMA9 == nil || rows[126].EMA9 == nil {
		t.Error("EMA should remain valid on both sides of a single-bar gap")
	}
}

func TestCompute_DerivedFlagsRequirePriorData(t *testing.T) {
	bars := makeBars(5, 100, 1)
	rows := Compute(bars, nil)
	if rows[0].HigherHighs != nil {
		t.Error("HigherHighs should be null before 40 bars of history")
	}
}

func TestCompute_GoldenCrossFlag(t *testing.T) {
	bars := makeBars(210, 100, 0.5) // steady uptrend: SMA50 should exceed SMA200
	rows := Compute(bars, nil)
	last := rows[len(rows)-1]
	if last.SMA50AboveSMA200 == nil {
		t.Fatal("SMA50AboveSMA200 should be populated with 210 bars")
	}
	if !*last.SMA50AboveSMA200 {
		t.Error("expected golden cross state in a steady uptrend")
	}
}
