package providers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/marketpipe/ingestor/internal/errs"
	"github.com/marketpipe/ingestor/internal/model"
)

// Guarded wraps a Provider with a per-provider circuit breaker and rate
// limiter, so every outbound call automatically observes both without
// the stage code having to remember to.
type Guarded struct {
	Provider
	breaker *gobreaker.CircuitBreaker
	limiter Limiter
}

// Limiter is the subset of ratelimit.Limiter the provider layer needs;
// declared here to avoid an import cycle back into cmd wiring.
type Limiter interface {
	Acquire(ctx context.Context, provider string) error
}

// BreakerConfig mirrors config.CircuitConfig without importing the
// config package, keeping providers free of a config dependency.
type BreakerConfig struct {
	FailureThreshold uint
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// NewGuarded wraps p with a gobreaker.CircuitBreaker (opening after
// FailureThreshold consecutive failures) and a shared rate limiter.
func NewGuarded(p Provider, cfg BreakerConfig, limiter Limiter) *Guarded {
	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &Guarded{Provider: p, breaker: gobreaker.NewCircuitBreaker(settings), limiter: limiter}
}

func (g *Guarded) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := g.limiter.Acquire(ctx, g.Provider.Name()); err != nil {
		return nil, errs.New(errs.KindProviderRateLimited, "", "", "rate limiter acquire failed", err)
	}
	res, err := g.breaker.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.New(errs.KindProviderUnavailable, "", "", "circuit open", err)
		}
	}
	return res, err
}

func (g *Guarded) FetchPriceHistory(ctx context.Context, symbol string, period Period) ([]PriceBar, error) {
	res, err := g.call(ctx, func() (any, error) { return g.Provider.FetchPriceHistory(ctx, symbol, period) })
	if err != nil {
		return nil, err
	}
	return res.([]PriceBar), nil
}

func (g *Guarded) FetchFundamentals(ctx context.Context, symbol string) (Fundamentals, error) {
	res, err := g.call(ctx, func() (any, error) { return g.Provider.FetchFundamentals(ctx, symbol) })
	if err != nil {
		return Fundamentals{}, err
	}
	return res.(Fundamentals), nil
}

func (g *Guarded) FetchCurrentPrice(ctx context.Context, symbol string) (CurrentPrice, error) {
	res, err := g.call(ctx, func() (any, error) { return g.Provider.FetchCurrentPrice(ctx, symbol) })
	if err != nil {
		return CurrentPrice{}, err
	}
	return res.(CurrentPrice), nil
}

type financials struct {
	income, balance, cashflow []model.FinancialStatement
}

func (g *Guarded) FetchFinancials(ctx context.Context, symbol string) (income, balance, cashflow []model.FinancialStatement, err error) {
	res, err := g.call(ctx, func() (any, error) {
		in, bal, cf, ferr := g.Provider.FetchFinancials(ctx, symbol)
		return financials{in, bal, cf}, ferr
	})
	if err != nil {
		return nil, nil, nil, err
	}
	f := res.(financials)
	return f.income, f.balance, f.cashflow, nil
}

func (g *Guarded) FetchNews(ctx context.Context, symbol string, limit int) ([]NewsArticle, error) {
	res, err := g.call(ctx, func() (any, error) { return g.Provider.FetchNews(ctx, symbol, limit) })
	if err != nil {
		return nil, err
	}
	return res.([]NewsArticle), nil
}

func (g *Guarded) FetchEarnings(ctx context.Context, symbol string) ([]EarningsRecord, error) {
	res, err := g.call(ctx, func() (any, error) { return g.Provider.FetchEarnings(ctx, symbol) })
	if err != nil {
		return nil, err
	}
	return res.([]EarningsRecord), nil
}
