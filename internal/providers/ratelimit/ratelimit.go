// Package ratelimit implements the per-provider token bucket (spec C2):
// a blocking Acquire that admits at most N requests per window, plus a
// monthly budget guard that warns once usage reaches WarnThreshold and
// enters a fallback mode once the monthly budget is used up. Fallback
// mode is reported through logs and Status; it does not change how
// Acquire admits requests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter is a thread-safe, per-provider token bucket. Capacity tokens
// refill continuously at capacity/window. Callers never bypass it: every
// outbound provider call goes through Acquire first.
type Limiter struct {
	mu        sync.Mutex
	providers map[string]*bucketState
}

type bucketState struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	monthlyBudget    int64
	used             int64
	warnThreshold    float64
	fallbackMode     bool
	resetAt          time.Time
}

// Config describes one provider's bucket capacity and optional monthly budget.
type Config struct {
	Capacity      int
	WindowSeconds int
	MonthlyBudget int64 // 0 disables the budget guard
	WarnThreshold float64
}

// New creates a rate limiter with no providers configured; call Configure
// for each provider before Acquire is used against it.
func New() *Limiter {
	return &Limiter{providers: make(map[string]*bucketState)}
}

// Configure (re)initialises a provider's bucket. Safe to call at any time;
// existing tokens are reset to full capacity.
func (l *Limiter) Configure(provider string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 1
	}
	warn := cfg.WarnThreshold
	if warn <= 0 {
		warn = 0.9
	}
	l.providers[provider] = &bucketState{
		capacity:      float64(cfg.Capacity),
		refillRate:    float64(cfg.Capacity) / float64(cfg.WindowSeconds),
		tokens:        float64(cfg.Capacity),
		lastRefill:    time.Now(),
		monthlyBudget: cfg.MonthlyBudget,
		warnThreshold: warn,
		resetAt:       nextMonthReset(time.Now()),
	}
}

// Acquire blocks until at least one token is available for provider, or
// ctx is cancelled. Unknown providers get an implicit generous default
// bucket rather than an error, matching the teacher's "unknown venue"
// fallback behaviour.
func (l *Limiter) Acquire(ctx context.Context, provider string) error {
	for {
		wait, blocked, err := l.tryAcquire(provider)
		if err != nil {
			return err
		}
		if !blocked {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) tryAcquire(provider string) (wait time.Duration, blocked bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.state(provider)
	l.refill(state)

	if state.fallbackMode {
		log.Warn().Str("provider", provider).Msg("rate limiter: monthly budget exhausted, fallback mode active")
		// the budget guard does not block the caller; the token bucket below still applies
	}

	if state.tokens >= 1 {
		state.tokens--
		state.used++
		l.checkBudget(provider, state)
		return 0, false, nil
	}

	deficit := 1 - state.tokens
	return time.Duration(deficit/state.refillRate*float64(time.Second)) + time.Millisecond, true, nil
}

func (l *Limiter) refill(state *bucketState) {
	now := time.Now()
	elapsed := now.Sub(state.lastRefill).Seconds()
	state.tokens += elapsed * state.refillRate
	if state.tokens > state.capacity {
		state.tokens = state.capacity
	}
	state.lastRefill = now

	if now.After(state.resetAt) {
		state.used = 0
		state.fallbackMode = false
		state.resetAt = nextMonthReset(now)
	}
}

func (l *Limiter) checkBudget(provider string, state *bucketState) {
	if state.monthlyBudget <= 0 {
		return
	}
	ratio := float64(state.used) / float64(state.monthlyBudget)
	if ratio >= 1.0 && !state.fallbackMode {
		state.fallbackMode = true
		log.Warn().Str("provider", provider).Float64("usage_ratio", ratio).Msg("monthly budget exhausted, entering fallback mode")
	} else if ratio >= state.warnThreshold {
		log.Warn().Str("provider", provider).Float64("usage_ratio", ratio).Msg("approaching monthly provider budget")
	}
}

func (l *Limiter) state(provider string) *bucketState {
	s, ok := l.providers[provider]
	if !ok {
		s = &bucketState{
			capacity:   5,
			refillRate: 5,
			tokens:     5,
			lastRefill: time.Now(),
			resetAt:    nextMonthReset(time.Now()),
		}
		l.providers[provider] = s
	}
	return s
}

// Status reports a provider's current bucket occupancy, for the
// operator HTTP surface and metrics.
type Status struct {
	Provider     string
	TokensLeft   float64
	Capacity     float64
	FallbackMode bool
	BudgetUsed   int64
	BudgetTotal  int64
}

func (l *Limiter) Status(provider string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.state(provider)
	l.refill(state)
	return Status{
		Provider:     provider,
		TokensLeft:   state.tokens,
		Capacity:     state.capacity,
		FallbackMode: state.fallbackMode,
		BudgetUsed:   state.used,
		BudgetTotal:  state.monthlyBudget,
	}
}

func nextMonthReset(now time.Time) time.Time {
	year, month, _ := now.Date()
	if month == 12 {
		return time.Date(year+1, 1, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location())
}
