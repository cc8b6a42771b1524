// Package growth implements the Growth Engine (spec C7): year-over-year
// revenue/earnings/EPS growth from stored financial statements.
package growth

import (
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

// Compute takes a symbol's financial statements (any mix of quarterly
// and annual periods, in any order) and returns the growth figures for
// EnhancedFundamentals' single row per symbol. The comparison basis is
// the single overall-latest statement across both period types — not
// one row per type — so the persisted row is deterministic regardless
// of what mix of statement types is on hand, rather than depending on
// Go's randomized map iteration order to pick a "last write wins"
// period type. A comparison is skipped silently — growth left nil, not
// infinite — when the prior-period partner is missing or its
// denominator is zero.
func Compute(symbol string, statements []model.FinancialStatement) []model.EnhancedFundamentals {
	if len(statements) == 0 {
		return nil
	}

	byType := map[model.PeriodType][]model.FinancialStatement{}
	for _, s := range statements {
		byType[s.PeriodType] = append(byType[s.PeriodType], s)
	}
	for _, periods := range byType {
		sortByPeriodEnd(periods)
	}

	latest := latestOverall(statements)
	periods := byType[latest.PeriodType]

	var prior *model.FinancialStatement
	if latest.PeriodType == model.PeriodQuarterly {
		prior = findQuartersBack(periods, latest, 4)
	} else {
		prior = findYearsBack(periods, latest, 1)
	}
	if prior == nil {
		return nil
	}

	ef := model.EnhancedFundamentals{
		Symbol:    symbol,
		AsOfDate:  latest.PeriodEnd,
		UpdatedAt: time.Now().UTC(),
	}
	ef.RevenueGrowth = growthRatio(latest.Revenue, prior.Revenue)
	ef.EarningsGrowth = growthRatio(latest.NetIncome, prior.NetIncome)
	ef.EPSGrowth = growthRatio(latest.EPS, prior.EPS)
	return []model.EnhancedFundamentals{ef}
}

// latestOverall picks the statement with the latest period_end across
// every period type; ties break on period_type name so the result
// never depends on slice or map ordering.
func latestOverall(statements []model.FinancialStatement) model.FinancialStatement {
	best := statements[0]
	for _, s := range statements[1:] {
		if s.PeriodEnd.After(best.PeriodEnd) {
			best = s
		} else if s.PeriodEnd.Equal(best.PeriodEnd) && s.PeriodType < best.PeriodType {
			best = s
		}
	}
	return best
}

func growthRatio(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	v := (*current - *previous) / abs(*previous)
	return &v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sortByPeriodEnd(periods []model.FinancialStatement) {
	for i := 1; i < len(periods); i++ {
		for j := i; j > 0 && periods[j].PeriodEnd.Before(periods[j-1].PeriodEnd); j-- {
			periods[j], periods[j-1] = periods[j-1], periods[j]
		}
	}
}

// findQuartersBack locates the statement whose period_end is the same
// fiscal quarter four quarters before latest's, tolerating a few days
// of reporting-date jitter around the expected anchor.
func findQuartersBack(periods []model.FinancialStatement, latest model.FinancialStatement, quarters int) *model.FinancialStatement {
	target := latest.PeriodEnd.AddDate(0, -3*quarters, 0)
	return nearestTo(periods, target)
}

func findYearsBack(periods []model.FinancialStatement, latest model.FinancialStatement, years int) *model.FinancialStatement {
	target := latest.PeriodEnd.AddDate(-years, 0, 0)
	return nearestTo(periods, target)
}

func nearestTo(periods []model.FinancialStatement, target time.Time) *model.FinancialStatement {
	const tolerance = 20 * 24 * time.Hour
	var best *model.FinancialStatement
	bestDiff := time.Duration(1<<63 - 1)
	for i := range periods {
		diff := periods[i].PeriodEnd.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = &periods[i]
		}
	}
	if best == nil || bestDiff > tolerance {
		return nil
	}
	return best
}
