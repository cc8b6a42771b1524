package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/errs"
)

func TestDelay_FollowsExponentialSchedule(t *testing.T) {
	p := New(config.DefaultRetryConfig())
	require.Equal(t, 60*time.Second, p.Delay(0))
	require.Equal(t, 120*time.Second, p.Delay(1))
	require.Equal(t, 240*time.Second, p.Delay(2))
}

func TestDelay_CapsAtMaxDelay(t *testing.T) {
	p := New(config.DefaultRetryConfig())
	require.Equal(t, 3600*time.Second, p.Delay(10))
}

func TestShouldRetry_TrueForRetryableBelowMaxAttempts(t *testing.T) {
	p := New(config.DefaultRetryConfig())
	err := errs.New(errs.KindProviderUnavailable, "ingestion", "AAPL", "timeout", nil)
	require.True(t, p.ShouldRetry(err, 0))
	require.True(t, p.ShouldRetry(err, 1))
}

func TestShouldRetry_FalseAtMaxAttempts(t *testing.T) {
	p := New(config.DefaultRetryConfig())
	err := errs.New(errs.KindProviderUnavailable, "ingestion", "AAPL", "timeout", nil)
	require.False(t, p.ShouldRetry(err, 2)) // default MaxAttempts=3, attempts 0,1,2 used
}

func TestShouldRetry_FalseForTerminalError(t *testing.T) {
	p := New(config.DefaultRetryConfig())
	err := errs.New(errs.KindValidationFailure, "ingestion", "AAPL", "bad data", nil)
	require.False(t, p.ShouldRetry(err, 0))
}
