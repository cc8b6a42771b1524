package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/model"
)

func bar(date time.Time, open, high, low, close float64, volume int64) model.Bar {
	return model.Bar{Symbol: "AAPL", Date: date, Frequency: model.FreqDaily, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

func TestWeekly_AggregatesOHLCV(t *testing.T) {
	mon := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	daily := []model.Bar{
		bar(mon, 100, 105, 99, 102, 1000),
		bar(mon.AddDate(0, 0, 1), 102, 108, 101, 106, 1200),
		bar(mon.AddDate(0, 0, 4), 106, 110, 104, 109, 900),
	}

	weekly := Weekly(daily)
	require.Len(t, weekly, 1)
	require.Equal(t, 100.0, weekly[0].Open)
	require.Equal(t, 110.0, weekly[0].High)
	require.Equal(t, 99.0, weekly[0].Low)
	require.Equal(t, 109.0, weekly[0].Close)
	require.Equal(t, int64(3100), weekly[0].Volume)
	require.Equal(t, mon, weekly[0].Date)
}

func TestWeekly_EmitsOnlyBucketsWithBars(t *testing.T) {
	week1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	week3 := week1.AddDate(0, 0, 14)
	daily := []model.Bar{
		bar(week1, 100, 101, 99, 100, 500),
		bar(week3, 110, 111, 109, 110, 500),
	}

	weekly := Weekly(daily)
	require.Len(t, weekly, 2)
}

func TestWeekly_IdempotentAcrossReruns(t *testing.T) {
	mon := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	daily := []model.Bar{bar(mon, 100, 105, 99, 102, 1000), bar(mon.AddDate(0, 0, 2), 102, 107, 100, 104, 800)}

	first := Weekly(daily)
	second := Weekly(daily)
	require.Equal(t, first, second)
}

func TestMonthly_BucketsByCalendarMonth(t *testing.T) {
	daily := []model.Bar{
		bar(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 100, 102, 98, 101, 500),
		bar(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 101, 106, 100, 105, 500),
		bar(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 105, 107, 103, 106, 500),
	}

	monthly := Monthly(daily)
	require.Len(t, monthly, 2)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), monthly[0].Date)
	require.Equal(t, 106.0, monthly[0].High)
}
