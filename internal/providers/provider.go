// Package providers defines the uniform data-source adapter contract
// (spec C1) and the fallback composition that tries providers in
// declared order until one yields a non-empty result.
package providers

import (
	"context"
	"time"

	"github.com/marketpipe/ingestor/internal/model"
)

// Period is a relative history window a provider is asked to fetch, e.g.
// "1y", "5y", "max". The adapter translates it to provider-native query
// parameters.
type Period string

// PriceBar is one OHLCV observation as returned by a provider, ahead of
// any persistence-layer shaping.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// CurrentPrice is a provider's latest trade/quote snapshot.
type CurrentPrice struct {
	Price     float64
	Timestamp time.Time
}

// Fundamentals is a provider's fundamentals snapshot; fields may be nil
// when the provider does not carry them.
type Fundamentals struct {
	Symbol          string
	MarketCap       *float64
	PERatio         *float64
	DividendYield   *float64
	Sector          *string
	Industry        *string
}

// NewsArticle is one headline/summary item from a provider's news feed.
type NewsArticle struct {
	Title     string
	Summary   string
	URL       string
	Source    string
	Published time.Time
}

// EarningsRecord is one historical or upcoming earnings event.
type EarningsRecord struct {
	PeriodEnd    time.Time
	ReportDate   time.Time
	EPSEstimate  *float64
	EPSActual    *float64
	SurpriseType string
}

// Provider is the uniform capability set every data source adapter
// implements. Fetches fail with a *errs.PipelineError carrying Kind
// ProviderUnavailable, ProviderRateLimited, or ProviderMalformed.
type Provider interface {
	Name() string
	FetchPriceHistory(ctx context.Context, symbol string, period Period) ([]PriceBar, error)
	FetchCurrentPrice(ctx context.Context, symbol string) (CurrentPrice, error)
	FetchFundamentals(ctx context.Context, symbol string) (Fundamentals, error)
	FetchFinancials(ctx context.Context, symbol string) (income, balance, cashflow []model.FinancialStatement, err error)
	FetchNews(ctx context.Context, symbol string, limit int) ([]NewsArticle, error)
	FetchEarnings(ctx context.Context, symbol string) ([]EarningsRecord, error)
}
