// Package aggregate resamples daily bars into weekly and monthly
// buckets (spec C6). Resampling is pure and idempotent: re-running
// over the same daily bars produces byte-identical output rows.
package aggregate

import (
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

// Weekly resamples ascending daily bars into calendar-week
// (Monday-Friday) buckets. A bucket is emitted only when it contains
// at least one daily bar.
func Weekly(daily []model.Bar) []model.Bar {
	return resample(daily, model.FreqWeekly, weekStart)
}

// Monthly resamples ascending daily bars into calendar-month buckets.
func Monthly(daily []model.Bar) []model.Bar {
	return resample(daily, model.FreqMonthly, monthStart)
}

func resample(daily []model.Bar, freq model.Frequency, bucketKey func(time.Time) time.Time) []model.Bar {
	if len(daily) == 0 {
		return nil
	}

	var out []model.Bar
	var current *model.Bar
	var currentKey time.Time

	flush := func() {
		if current != nil {
			out = append(out, *current)
		}
	}

	for _, b := range daily {
		key := bucketKey(b.Date)
		if current == nil || !key.Equal(currentKey) {
			flush()
			bucket := model.Bar{
				Symbol: b.Symbol, Date: key, Frequency: freq,
				Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
				Source: b.Source,
			}
			current = &bucket
			currentKey = key
			continue
		}
		if b.High > current.High {
			current.High = b.High
		}
		if b.Low < current.Low {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.Volume += b.Volume
	}
	flush()
	return out
}

// weekStart returns the Monday of t's ISO week, used as the bucket key
// and the persisted date for weekly rows.
func weekStart(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return t.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
