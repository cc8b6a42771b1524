// Package validate implements the Validator (spec C3): a battery of
// independent checks run over one symbol's fetched price history,
// aggregated into a ValidationReport, plus validate_and_clean which
// additionally drops offending rows.
package validate

import (
	"math"
	"sort"
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

// RawRow is one provider-fetched OHLCV observation before it is
// coerced into a model.Bar. Fields are nullable because a provider's
// feed can carry gaps; the checks below are precisely what decide
// whether a gap is tolerable.
type RawRow struct {
	Date   time.Time
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *int64
}

// Check is one independent validation rule; implementations must not
// mutate rows.
type Check interface {
	Name() string
	Run(rows []RawRow) model.CheckResult
}

// RequiredIndicator names an indicator the IndicatorData check must
// confirm the trailing window can support.
type RequiredIndicator struct {
	Name       string
	MinPeriods int
}

// Validator runs the full check catalogue over a dataset.
type Validator struct {
	requiredIndicators []RequiredIndicator
}

func New(requiredIndicators []RequiredIndicator) *Validator {
	return &Validator{requiredIndicators: requiredIndicators}
}

// Validate runs every check and aggregates them into a report.
// overall_status is fail if any critical check failed, warning if any
// warning check failed, pass otherwise.
func (v *Validator) Validate(symbol, dataType string, rows []RawRow) model.ValidationReport {
	checks := []Check{
		missingValuesCheck{},
		duplicatesCheck{},
		dataTypeCheck{},
		rangeCheck{},
		outlierCheck{},
		continuityCheck{},
		volumeCheck{},
		indicatorDataCheck{required: v.requiredIndicators},
	}

	report := model.ValidationReport{
		Symbol:    symbol,
		DataType:  dataType,
		Timestamp: time.Now().UTC(),
	}

	status := model.StatusPass
	for _, c := range checks {
		res := c.Run(rows)
		report.Checks = append(report.Checks, res)
		if !res.Passed {
			switch res.Severity {
			case model.SeverityCritical:
				report.CriticalCount++
				status = model.StatusFail
			case model.SeverityWarning:
				report.WarningCount++
				if status != model.StatusFail {
					status = model.StatusWarning
				}
			}
		}
	}
	report.OverallStatus = status
	return report
}

// ValidateAndClean runs Validate, then drops rows that have nulls in
// critical columns, duplicate an earlier date (keeping the first
// occurrence), or violate the Range check. It returns the cleaned rows
// and a report reflecting what was dropped.
func (v *Validator) ValidateAndClean(symbol, dataType string, rows []RawRow) ([]RawRow, model.ValidationReport) {
	report := v.Validate(symbol, dataType, rows)

	seenDates := make(map[string]bool, len(rows))
	cleaned := make([]RawRow, 0, len(rows))
	dropped := 0

	for _, r := range rows {
		key := r.Date.Format("2006-01-02")
		if seenDates[key] {
			dropped++
			continue
		}
		if hasNullCritical(r) {
			dropped++
			continue
		}
		if !rangeOK(r) {
			dropped++
			continue
		}
		seenDates[key] = true
		cleaned = append(cleaned, r)
	}

	report.RowsDropped = dropped
	return cleaned, report
}

func hasNullCritical(r RawRow) bool {
	return r.Close == nil || r.High == nil || r.Low == nil || r.Open == nil || r.Volume == nil
}

func rangeOK(r RawRow) bool {
	if hasNullCritical(r) {
		return false
	}
	if *r.Close <= 0 {
		return false
	}
	if *r.High < *r.Low {
		return false
	}
	if *r.Volume < 0 {
		return false
	}
	return true
}

type missingValuesCheck struct{}

func (missingValuesCheck) Name() string { return "MissingValues" }

func (missingValuesCheck) Run(rows []RawRow) model.CheckResult {
	var issues []model.Issue
	for i, r := range rows {
		if hasNullCritical(r) {
			issues = append(issues, model.Issue{RowIndex: i, Date: r.Date.Format("2006-01-02"), Message: "null in close/high/low/open/volume"})
		}
	}
	return finish("MissingValues", len(rows), issues, 0.10)
}

type duplicatesCheck struct{}

func (duplicatesCheck) Name() string { return "Duplicates" }

func (duplicatesCheck) Run(rows []RawRow) model.CheckResult {
	seen := make(map[string]int, len(rows))
	var issues []model.Issue
	for i, r := range rows {
		key := r.Date.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			issues = append(issues, model.Issue{RowIndex: i, Date: key, Message: "duplicate date"})
		}
		seen[key]++
	}
	return finish("Duplicates", len(rows), issues, 0.05)
}

type dataTypeCheck struct{}

func (dataTypeCheck) Name() string { return "DataType" }

func (dataTypeCheck) Run(rows []RawRow) model.CheckResult {
	var issues []model.Issue
	for i, r := range rows {
		for _, f := range []*float64{r.Open, r.High, r.Low, r.Close} {
			if f != nil && math.IsNaN(*f) {
				issues = append(issues, model.Issue{RowIndex: i, Date: r.Date.Format("2006-01-02"), Message: "non-numeric value"})
				break
			}
		}
	}
	res := model.CheckResult{Name: "DataType", RowsChecked: len(rows), RowsFailed: len(issues), Issues: issues}
	res.Passed = len(issues) == 0
	res.Severity = model.SeverityCritical
	return res
}

type rangeCheck struct{}

func (rangeCheck) Name() string { return "Range" }

func (rangeCheck) Run(rows []RawRow) model.CheckResult {
	var issues []model.Issue
	for i, r := range rows {
		if hasNullCritical(r) {
			continue // MissingValues already reports this row
		}
		if !rangeOK(r) {
			issues = append(issues, model.Issue{RowIndex: i, Date: r.Date.Format("2006-01-02"), Message: "close<=0 or high<low or volume<0"})
		}
	}
	res := model.CheckResult{Name: "Range", RowsChecked: len(rows), RowsFailed: len(issues), Issues: issues}
	res.Passed = len(issues) == 0
	res.Severity = model.SeverityCritical
	return res
}

type outlierCheck struct{}

func (outlierCheck) Name() string { return "Outlier" }

// Run flags close prices beyond 3x the interquartile range of the
// dataset's closes; warning only, never drops rows.
func (outlierCheck) Run(rows []RawRow) model.CheckResult {
	closes := make([]float64, 0, len(rows))
	indices := make([]int, 0, len(rows))
	for i, r := range rows {
		if r.Close != nil && !math.IsNaN(*r.Close) {
			closes = append(closes, *r.Close)
			indices = append(indices, i)
		}
	}
	res := model.CheckResult{Name: "Outlier", RowsChecked: len(rows)}
	res.Severity = model.SeverityWarning
	if len(closes) < 4 {
		res.Passed = true
		return res
	}

	sorted := append([]float64(nil), closes...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 3*iqr
	upper := q3 + 3*iqr

	var issues []model.Issue
	for k, c := range closes {
		if c < lower || c > upper {
			i := indices[k]
			issues = append(issues, model.Issue{RowIndex: i, Date: rows[i].Date.Format("2006-01-02"), Message: "close outside 3x IQR"})
		}
	}
	res.RowsFailed = len(issues)
	res.Issues = issues
	res.Passed = len(issues) == 0
	return res
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

type continuityCheck struct{}

func (continuityCheck) Name() string { return "Continuity" }

func (continuityCheck) Run(rows []RawRow) model.CheckResult {
	sorted := append([]RawRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var issues []model.Issue
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Date.Sub(sorted[i-1].Date)
		if gap > 7*24*time.Hour {
			issues = append(issues, model.Issue{RowIndex: i, Date: sorted[i].Date.Format("2006-01-02"), Message: "gap exceeds 7 calendar days"})
		}
	}
	res := model.CheckResult{Name: "Continuity", RowsChecked: len(rows), RowsFailed: len(issues), Issues: issues}
	res.Passed = len(issues) == 0
	res.Severity = model.SeverityWarning
	return res
}

type volumeCheck struct{}

func (volumeCheck) Name() string { return "Volume" }

func (volumeCheck) Run(rows []RawRow) model.CheckResult {
	zero := 0
	var issues []model.Issue
	for i, r := range rows {
		if r.Volume != nil && *r.Volume == 0 {
			zero++
			issues = append(issues, model.Issue{RowIndex: i, Date: r.Date.Format("2006-01-02"), Message: "zero volume"})
		}
	}
	res := model.CheckResult{Name: "Volume", RowsChecked: len(rows), RowsFailed: zero, Severity: model.SeverityWarning}
	if len(rows) == 0 {
		res.Passed = true
		return res
	}
	ratio := float64(zero) / float64(len(rows))
	res.Passed = ratio <= 0.20
	if !res.Passed {
		res.Issues = issues
	}
	return res
}

type indicatorDataCheck struct {
	required []RequiredIndicator
}

func (indicatorDataCheck) Name() string { return "IndicatorData" }

// Run confirms the dataset carries enough trailing bars for every
// required indicator's minimum lookback, critical if the tail is
// unusable for any of them.
func (c indicatorDataCheck) Run(rows []RawRow) model.CheckResult {
	res := model.CheckResult{Name: "IndicatorData", RowsChecked: len(rows), Severity: model.SeverityCritical}
	var issues []model.Issue
	for _, ind := range c.required {
		if len(rows) < ind.MinPeriods {
			issues = append(issues, model.Issue{Message: ind.Name + ": insufficient trailing bars"})
		}
	}
	res.RowsFailed = len(issues)
	res.Issues = issues
	res.Passed = len(issues) == 0
	return res
}

func finish(name string, n int, issues []model.Issue, criticalRatio float64) model.CheckResult {
	res := model.CheckResult{Name: name, RowsChecked: n, RowsFailed: len(issues), Issues: issues}
	if n == 0 {
		res.Passed = true
		res.Severity = model.SeverityInfo
		return res
	}
	ratio := float64(len(issues)) / float64(n)
	if ratio == 0 {
		res.Passed = true
		return res
	}
	res.Passed = false
	if ratio > criticalRatio {
		res.Severity = model.SeverityCritical
	} else {
		res.Severity = model.SeverityWarning
	}
	return res
}
