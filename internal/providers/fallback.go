package providers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/ingestor/internal/errs"
	"github.com/marketpipe/ingestor/internal/model"
)

// FallbackChain tries providers in declared order and returns the first
// result that comes back without error; FetchPriceHistory also moves on
// past a provider that returns zero bars. If no provider yields a result
// (for price history: a non-empty one), it raises ALL_PROVIDERS_FAILED.
type FallbackChain struct {
	providers []Provider
}

func NewFallbackChain(providers ...Provider) *FallbackChain {
	return &FallbackChain{providers: providers}
}

func (c *FallbackChain) Name() string { return "fallback_chain" }

func (c *FallbackChain) FetchPriceHistory(ctx context.Context, symbol string, period Period) ([]PriceBar, error) {
	var lastErr error
	for _, p := range c.providers {
		bars, err := p.FetchPriceHistory(ctx, symbol, period)
		if err != nil {
			log.Warn().Str("provider", p.Name()).Str("symbol", symbol).Err(err).Msg("provider fetch failed, trying fallback")
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			lastErr = errs.New(errs.KindNoData, "ingestion", symbol, "provider returned zero rows", nil)
			continue
		}
		return bars, nil
	}
	return nil, errs.New(errs.KindAllProvidersFailed, "ingestion", symbol, "no provider returned data", lastErr)
}

func (c *FallbackChain) FetchCurrentPrice(ctx context.Context, symbol string) (CurrentPrice, error) {
	var lastErr error
	for _, p := range c.providers {
		cp, err := p.FetchCurrentPrice(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		return cp, nil
	}
	return CurrentPrice{}, errs.New(errs.KindAllProvidersFailed, "ingestion", symbol, "no provider returned a current price", lastErr)
}

func (c *FallbackChain) FetchFundamentals(ctx context.Context, symbol string) (Fundamentals, error) {
	var lastErr error
	for _, p := range c.providers {
		f, err := p.FetchFundamentals(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		return f, nil
	}
	return Fundamentals{}, errs.New(errs.KindAllProvidersFailed, "financial_data", symbol, "no provider returned fundamentals", lastErr)
}

func (c *FallbackChain) FetchFinancials(ctx context.Context, symbol string) (income, balance, cashflow []model.FinancialStatement, err error) {
	var lastErr error
	for _, p := range c.providers {
		in, bal, cf, ferr := p.FetchFinancials(ctx, symbol)
		if ferr != nil {
			lastErr = ferr
			continue
		}
		return in, bal, cf, nil
	}
	return nil, nil, nil, errs.New(errs.KindAllProvidersFailed, "financial_data", symbol, "no provider returned financials", lastErr)
}

func (c *FallbackChain) FetchNews(ctx context.Context, symbol string, limit int) ([]NewsArticle, error) {
	var lastErr error
	for _, p := range c.providers {
		n, err := p.FetchNews(ctx, symbol, limit)
		if err != nil {
			lastErr = err
			continue
		}
		return n, nil
	}
	return nil, errs.New(errs.KindAllProvidersFailed, "news", symbol, "no provider returned news", lastErr)
}

func (c *FallbackChain) FetchEarnings(ctx context.Context, symbol string) ([]EarningsRecord, error) {
	var lastErr error
	for _, p := range c.providers {
		e, err := p.FetchEarnings(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		return e, nil
	}
	return nil, errs.New(errs.KindAllProvidersFailed, "earnings", symbol, "no provider returned earnings", lastErr)
}
