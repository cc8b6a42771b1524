// Package fake implements a deterministic equities data provider used in
// tests and as an offline default when no real provider is configured.
// Every quantity is derived from a per-symbol seed so repeated runs
// against the same symbol and date range reproduce identical bars.
package fake

import (
	"context"
	"crypto/md5"
	"math"
	"math/rand"
	"time"

	"github.com/marketpipe/ingestor/internal/model"
	"github.com/marketpipe/ingestor/internal/providers"
)

// Adapter is a deterministic, seeded fake equities Provider.
type Adapter struct {
	name       string
	volatility float64
	trendBias  float64
	basePrices map[string]float64
}

// New creates a fake provider named name. volatility is daily price
// volatility (0.02 = 2%); trendBias shifts the daily drift (-0.5..0.5).
func New(name string, volatility, trendBias float64) *Adapter {
	return &Adapter{name: name, volatility: volatility, trendBias: trendBias, basePrices: map[string]float64{}}
}

func (a *Adapter) Name() string { return a.name }

// SetBasePrice overrides the seed-derived base price for symbol.
func (a *Adapter) SetBasePrice(symbol string, price float64) {
	a.basePrices[symbol] = price
}

func seedFor(symbol string, day int64) int64 {
	h := md5.Sum([]byte(symbol))
	base := int64(h[0])<<56 | int64(h[1])<<48 | int64(h[2])<<40 | int64(h[3])<<32 |
		int64(h[4])<<24 | int64(h[5])<<16 | int64(h[6])<<8 | int64(h[7])
	return base + day
}

func (a *Adapter) basePrice(symbol string) float64 {
	if p, ok := a.basePrices[symbol]; ok {
		return p
	}
	h := md5.Sum([]byte(symbol))
	return 20 + float64(h[0])
}

// FetchPriceHistory generates `period`-equivalent trading days of daily
// OHLCV bars ending the day before today, via a random walk seeded per
// symbol/day.
func (a *Adapter) FetchPriceHistory(ctx context.Context, symbol string, period providers.Period) ([]providers.PriceBar, error) {
	days := periodToTradingDays(period)
	price := a.basePrice(symbol)

	bars := make([]providers.PriceBar, 0, days)
	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -days)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		rng := rand.New(rand.NewSource(seedFor(symbol, date.Unix())))

		open := price
		drift := a.trendBias * a.volatility
		move := (rng.Float64()*2 - 1) * a.volatility
		close := open * (1 + drift + move)
		if close <= 0 {
			close = open * 0.99
		}

		rangePct := 0.01 * rng.Float64()
		high := math.Max(open, close) * (1 + rangePct)
		low := math.Min(open, close) * (1 - rangePct)

		volume := int64(500000 + rng.Float64()*300000 + math.Abs(close-open)/open*5_000_000)

		bars = append(bars, providers.PriceBar{
			Date: date, Open: open, High: high, Low: low, Close: close, Volume: volume,
		})
		price = close
	}
	return bars, nil
}

func (a *Adapter) FetchCurrentPrice(ctx context.Context, symbol string) (providers.CurrentPrice, error) {
	bars, err := a.FetchPriceHistory(ctx, symbol, "5d")
	if err != nil || len(bars) == 0 {
		return providers.CurrentPrice{}, err
	}
	last := bars[len(bars)-1]
	return providers.CurrentPrice{Price: last.Close, Timestamp: last.Date}, nil
}

func (a *Adapter) FetchFundamentals(ctx context.Context, symbol string) (providers.Fundamentals, error) {
	rng := rand.New(rand.NewSource(seedFor(symbol, 0)))
	price := a.basePrice(symbol)
	marketCap := price * float64(10_000_000+rng.Intn(90_000_000))
	pe := 10 + rng.Float64()*30
	div := rng.Float64() * 0.03
	sector := "Technology"
	industry := "Software"
	return providers.Fundamentals{
		Symbol: symbol, MarketCap: &marketCap, PERatio: &pe, DividendYield: &div,
		Sector: &sector, Industry: &industry,
	}, nil
}

func (a *Adapter) FetchFinancials(ctx context.Context, symbol string) (income, balance, cashflow []model.FinancialStatement, err error) {
	rng := rand.New(rand.NewSource(seedFor(symbol, 1)))
	now := time.Now().UTC()

	for q := 0; q < 8; q++ {
		periodEnd := now.AddDate(0, -3*q, 0)
		growth := 1 + (rng.Float64()-0.3)*0.1
		revenue := 1_000_000_000 * math.Pow(growth, float64(8-q))
		netIncome := revenue * (0.1 + rng.Float64()*0.1)
		eps := netIncome / 500_000_000

		income = append(income, model.FinancialStatement{
			Symbol: symbol, Type: model.StatementIncome, PeriodEnd: periodEnd, PeriodType: model.PeriodQuarterly,
			StatementLineItems: model.StatementLineItems{Revenue: ptr(revenue), NetIncome: ptr(netIncome), EPS: ptr(eps)},
		})
		balance = append(balance, model.FinancialStatement{
			Symbol: symbol, Type: model.StatementBalance, PeriodEnd: periodEnd, PeriodType: model.PeriodQuarterly,
			StatementLineItems: model.StatementLineItems{
				TotalAssets: ptr(revenue * 3), TotalLiabilities: ptr(revenue * 1.5),
				TotalDebt: ptr(revenue * 0.8), Receivables: ptr(revenue * 0.2),
			},
		})
		cashflow = append(cashflow, model.FinancialStatement{
			Symbol: symbol, Type: model.StatementCashFlow, PeriodEnd: periodEnd, PeriodType: model.PeriodQuarterly,
			StatementLineItems: model.StatementLineItems{OperatingCashFlow: ptr(netIncome * 1.2)},
		})
	}
	return income, balance, cashflow, nil
}

func (a *Adapter) FetchNews(ctx context.Context, symbol string, limit int) ([]providers.NewsArticle, error) {
	articles := make([]providers.NewsArticle, 0, limit)
	for i := 0; i < limit; i++ {
		articles = append(articles, providers.NewsArticle{
			Title:     symbol + " update",
			Summary:   "Synthetic news item for offline testing.",
			URL:       "https://example.invalid/" + symbol,
			Source:    a.name,
			Published: time.Now().UTC().AddDate(0, 0, -i),
		})
	}
	return articles, nil
}

func (a *Adapter) FetchEarnings(ctx context.Context, symbol string) ([]providers.EarningsRecord, error) {
	rng := rand.New(rand.NewSource(seedFor(symbol, 2)))
	now := time.Now().UTC()
	records := make([]providers.EarningsRecord, 0, 4)
	for q := 0; q < 4; q++ {
		periodEnd := now.AddDate(0, -3*q, 0)
		est := 1 + rng.Float64()
		actual := est * (0.9 + rng.Float64()*0.2)
		records = append(records, providers.EarningsRecord{
			PeriodEnd: periodEnd, ReportDate: periodEnd.AddDate(0, 0, 20),
			EPSEstimate: &est, EPSActual: &actual, SurpriseType: surpriseType(est, actual),
		})
	}
	return records, nil
}

func surpriseType(est, actual float64) string {
	switch {
	case actual > est:
		return "beat"
	case actual < est:
		return "miss"
	default:
		return "in-line"
	}
}

func periodToTradingDays(p providers.Period) int {
	switch p {
	case "1y":
		return 365
	case "2y":
		return 730
	case "5y":
		return 1825
	case "max":
		return 3650
	case "5d":
		return 7
	default:
		return 365
	}
}

func ptr(f float64) *float64 { return &f }
