// Package indicators implements the technical indicator engine (spec
// C5): given trailing daily bars for a symbol, it produces one
// IndicatorRow per date with SMA/EMA/RSI/MACD/ATR/Bollinger values and
// their derived boolean flags.
package indicators

import (
	"math"

	"github.com/marketpipe/ingestor/internal/model"
)

// Compute produces one model.IndicatorRow per bar, newest forward.
// bars must be sorted ascending by date. gaps[i] set to true marks
// bar i as a gap: SMA/EMA/Bollinger/RSI bridge across it using a
// forward-filled value internally, but the corresponding output
// position is re-nulled so the gap survives into the stored row.
func Compute(bars []model.Bar, gaps []bool) []model.IndicatorRow {
	n := len(bars)
	rows := make([]model.IndicatorRow, n)
	for i, b := range bars {
		rows[i].Symbol = b.Symbol
		rows[i].Date = b.Date
	}
	if n == 0 {
		return rows
	}

	closes := forwardFilled(bars, gaps)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = float64(b.Volume)
	}

	sma50 := sma(closes, 50)
	sma100 := sma(closes, 100)
	sma200 := sma(closes, 200)
	ema9 := ema(closes, 9)
	ema12 := ema(closes, 12)
	ema20 := ema(closes, 20)
	ema21 := ema(closes, 21)
	ema26 := ema(closes, 26)
	ema50 := ema(closes, 50)
	rsi14 := wilderRSI(closes, 14)
	macdLine, macdSignal, macdHist := macd(ema12, ema26)
	atr14 := wilderATR(bars, 14)
	bollMid, bollUpper, bollLower := bollinger(closes, 20, 2)
	volMean20 := sma(volumes, 20)

	for i := 0; i < n; i++ {
		gap := i < len(gaps) && gaps[i]

		rows[i].SMA50 = renull(sma50[i], gap)
		rows[i].SMA100 = renull(sma100[i], gap)
		rows[i].SMA200 = renull(sma200[i], gap)
		rows[i].EMA9 = renull(ema9[i], gap)
		rows[i].EMA12 = renull(ema12[i], gap)
		rows[i].EMA20 = renull(ema20[i], gap)
		rows[i].EMA21 = renull(ema21[i], gap)
		rows[i].EMA26 = renull(ema26[i], gap)
		rows[i].EMA50 = renull(ema50[i], gap)
		rows[i].RSI14 = renull(rsi14[i], gap)
		rows[i].MACDLine = renull(macdLine[i], gap)
		rows[i].MACDSignal = renull(macdSignal[i], gap)
		rows[i].MACDHistogram = renull(macdHist[i], gap)
		rows[i].ATR14 = renull(atr14[i], gap)
		rows[i].BollingerMid = renull(bollMid[i], gap)
		rows[i].BollingerUpper = renull(bollUpper[i], gap)
		rows[i].BollingerLower = renull(bollLower[i], gap)
		rows[i].VolumeMean20 = ptrOrNil(volMean20[i])

		applyFlags(&rows[i], bars, highs, lows, i)
	}
	return rows
}

func applyFlags(row *model.IndicatorRow, bars []model.Bar, highs, lows []float64, i int) {
	close := bars[i].Close

	if row.SMA200 != nil {
		row.PriceAboveSMA200 = boolPtr(close > *row.SMA200)
		row.PriceBelowSMA200 = boolPtr(close < *row.SMA200)
	}
	if row.SMA50 != nil {
		row.PriceBelowSMA50 = boolPtr(close < *row.SMA50)
	}
	if row.EMA9 != nil && row.EMA21 != nil {
		row.EMA9AboveEMA21 = boolPtr(*row.EMA9 > *row.EMA21)
	}
	if row.EMA12 != nil && row.EMA26 != nil {
		row.EMA12AboveEMA26 = boolPtr(*row.EMA12 > *row.EMA26)
	}
	if row.EMA20 != nil && row.EMA50 != nil {
		row.EMA20AboveEMA50 = boolPtr(*row.EMA20 > *row.EMA50)
	}
	if row.SMA50 != nil && row.SMA200 != nil {
		row.SMA50AboveSMA200 = boolPtr(*row.SMA50 > *row.SMA200)
	}
	if row.MACDLine != nil && row.MACDSignal != nil {
		row.MACDAboveSignal = boolPtr(*row.MACDLine > *row.MACDSignal)
	}
	if row.MACDHistogram != nil {
		row.MACDHistogramPositive = boolPtr(*row.MACDHistogram > 0)
	}
	if row.RSI14 != nil {
		zone := model.ClassifyRSIZone(*row.RSI14)
		row.RSIZone = &zone
	}
	if row.VolumeMean20 != nil && *row.VolumeMean20 > 0 {
		vol := float64(bars[i].Volume)
		row.VolumeAboveAverage = boolPtr(vol > *row.VolumeMean20)
		row.VolumeSpike = boolPtr(vol > 1.5*(*row.VolumeMean20))
	}

	if i >= 40 {
		prevHigh20 := maxOf(highs[i-40 : i-20])
		curHigh20 := maxOf(highs[i-20 : i])
		prevLow20 := minOf(lows[i-40 : i-20])
		curLow20 := minOf(lows[i-20 : i])
		row.HigherHighs = boolPtr(curHigh20 > prevHigh20)
		row.HigherLows = boolPtr(curLow20 > prevLow20)
	}
}

// forwardFilled returns closes with gap positions filled from the last
// known value, so EMA/SMA/RSI/Bollinger can bridge across a short drop.
func forwardFilled(bars []model.Bar, gaps []bool) []float64 {
	closes := make([]float64, len(bars))
	last := 0.0
	for i, b := range bars {
		if i < len(gaps) && gaps[i] {
			closes[i] = last
			continue
		}
		closes[i] = b.Close
		last = b.Close
	}
	return closes
}

func renull(v float64, gap bool) *float64 {
	if math.IsNaN(v) || gap {
		return nil
	}
	return &v
}

func ptrOrNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func boolPtr(b bool) *bool { return &b }

// sma returns, for each index i, the arithmetic mean of values[i-n+1:i+1],
// or NaN if fewer than n values are available.
func sma(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i < n-1 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// ema computes a Wilder-style EMA seeded with the SMA(n) of the first
// window: EMA_t = alpha*close_t + (1-alpha)*EMA_{t-1}, alpha = 2/(n+1).
// values may carry a leading run of NaN (e.g. macd()'s line series,
// which isn't defined until its slower EMA warms up); the seed window
// is taken from the first n valid values after that run, not values[0:n]
// unconditionally, so a NaN prefix never poisons every value after it.
func ema(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < n {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seed := 0.0
	for i := start; i < start+n; i++ {
		seed += values[i]
	}
	seed /= float64(n)
	out[start+n-1] = seed
	prev := seed
	for i := start + n; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// wilderRSI computes RSI(14) using Wilder's recursive smoothing of
// average gain/loss: avg_t = (avg_{t-1}*(period-1) + current)/period.
func wilderRSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) < period+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func macd(ema12, ema26 []float64) (line, signal, histogram []float64) {
	n := len(ema12)
	line = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(ema12[i]) || math.IsNaN(ema26[i]) {
			line[i] = math.NaN()
		} else {
			line[i] = ema12[i] - ema26[i]
		}
	}
	signal = ema(line, 9)
	histogram = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(line[i]) || math.IsNaN(signal[i]) {
			histogram[i] = math.NaN()
		} else {
			histogram[i] = line[i] - signal[i]
		}
	}
	return
}

// wilderATR computes ATR(14): true range Wilder-smoothed the same way
// as RSI's average gain/loss.
func wilderATR(bars []model.Bar, period int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n < period+1 {
		return out
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	avg := 0.0
	for i := 1; i <= period; i++ {
		avg += tr[i]
	}
	avg /= float64(period)
	out[period] = avg

	for i := period + 1; i < n; i++ {
		avg = (avg*float64(period-1) + tr[i]) / float64(period)
		out[i] = avg
	}
	return out
}

func bollinger(closes []float64, n int, mult float64) (mid, upper, lower []float64) {
	size := len(closes)
	mid = sma(closes, n)
	upper = make([]float64, size)
	lower = make([]float64, size)
	for i := 0; i < size; i++ {
		if math.IsNaN(mid[i]) {
			upper[i], lower[i] = math.NaN(), math.NaN()
			continue
		}
		sd := stdev(closes[i-n+1:i+1], mid[i])
		upper[i] = mid[i] + mult*sd
		lower[i] = mid[i] - mult*sd
	}
	return
}

func stdev(values []float64, mean float64) float64 {
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
