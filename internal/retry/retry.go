// Package retry implements the retry policy (spec C9): a bounded
// exponential backoff schedule and the should_retry decision every
// stage consults before sleeping.
package retry

import (
	"math"
	"time"

	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/errs"
)

// Policy applies config.RetryConfig's schedule to a given attempt
// count and error classification.
type Policy struct {
	cfg config.RetryConfig
}

func New(cfg config.RetryConfig) *Policy {
	return &Policy{cfg: cfg}
}

// ShouldRetry reports whether attempt k (0-indexed, the attempt that
// just failed) should be retried, given err's classification.
func (p *Policy) ShouldRetry(err error, k int) bool {
	if k+1 >= p.cfg.MaxAttempts {
		return false
	}
	return errs.Classify(err).Retryable
}

// Delay computes delay(k) = min(initial * factor^k, max_delay).
func (p *Policy) Delay(k int) time.Duration {
	initial := float64(p.cfg.InitialSecs)
	delay := initial * math.Pow(p.cfg.Factor, float64(k))
	max := float64(p.cfg.MaxDelaySecs)
	if delay > max {
		delay = max
	}
	return time.Duration(delay * float64(time.Second))
}
