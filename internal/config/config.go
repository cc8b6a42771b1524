// Package config loads the pipeline's YAML configuration surface:
// provider credentials and rate limits, orchestrator worker-pool size,
// retry parameters, and per-signal-type readiness thresholds.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files spell timeouts as Go
// duration strings ("30s", "1h") rather than raw nanosecond counts.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Config is the full configuration surface described in spec §6.
type Config struct {
	Providers    ProvidersConfig    `yaml:"providers"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Retry        RetryConfig        `yaml:"retry"`
	Gates        GatesConfig        `yaml:"gates"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
}

// ProvidersConfig is the set of configured data-source adapters plus a
// declared fallback order.
type ProvidersConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	FallbackOrder   []string                  `yaml:"fallback_order"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one external data-source adapter.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"` // env var name; never the raw key
	RPS         int           `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	DailyBudget int           `yaml:"daily_budget"`
	WindowSecs  int           `yaml:"window_secs"`
	Backoff     BackoffConfig `yaml:"backoff"`
	Circuit     CircuitConfig `yaml:"circuit"`
	Enabled     bool          `yaml:"enabled"`
}

func (p ProviderConfig) APIKey() string { return os.Getenv(p.APIKeyEnv) }

// BackoffConfig is a per-provider backoff schedule read from the config
// file. The retry policy (internal/retry) does not read it; it uses
// RetryConfig.
type BackoffConfig struct {
	InitialSecs int     `yaml:"initial_secs"`
	Factor      float64 `yaml:"factor"`
	MaxSecs     int     `yaml:"max_secs"`
}

// CircuitConfig configures the gobreaker.CircuitBreaker wrapping a provider.
type CircuitConfig struct {
	FailureThreshold uint    `yaml:"failure_threshold"`
	OpenTimeoutSecs  int     `yaml:"open_timeout_secs"`
	HalfOpenMaxCalls uint32  `yaml:"half_open_max_calls"`
}

// OrchestratorConfig configures the workflow orchestrator's worker pool
// and per-call timeouts.
type OrchestratorConfig struct {
	WorkerPoolSize  int           `yaml:"worker_pool_size"`
	ProviderTimeout Duration      `yaml:"provider_timeout"`
	DailyBatchCron  string        `yaml:"daily_batch_cron"`
}

// RetryConfig configures C9's classification-independent delay schedule.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	InitialSecs int     `yaml:"initial_secs"`
	Factor      float64 `yaml:"factor"`
	MaxDelaySecs int    `yaml:"max_delay_secs"`
}

// GatesConfig holds the per-signal-type readiness thresholds used by C8.
type GatesConfig struct {
	SignalReadiness map[string]SignalReadinessConfig `yaml:"signal_readiness"`
}

// SignalReadinessConfig is one signal type's required indicators and
// minimum data-quality score.
type SignalReadinessConfig struct {
	RequiredIndicators []string `yaml:"required_indicators"`
	MinPeriods         int      `yaml:"min_periods"`
	MinQualityScore    float64  `yaml:"min_quality_score"`
}

// DatabaseConfig is the Postgres connection string plus pool sizing.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration      `yaml:"conn_max_lifetime"`
}

// RedisConfig backs the checkpoint fast-path cache.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// Load reads a YAML config file, then overlays a .env file (if present)
// into the process environment so provider API keys never live in the
// YAML itself.
func Load(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env overlay: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Providers.DefaultProvider == "" {
		return fmt.Errorf("providers.default_provider cannot be empty")
	}
	if _, ok := c.Providers.Providers[c.Providers.DefaultProvider]; !ok {
		return fmt.Errorf("default_provider %q not present in providers map", c.Providers.DefaultProvider)
	}
	for name, p := range c.Providers.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	if c.Orchestrator.WorkerPoolSize <= 0 {
		c.Orchestrator.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

func (p ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %d", p.RPS)
	}
	if p.Burst < p.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%d)", p.Burst, p.RPS)
	}
	if p.WindowSecs <= 0 {
		return fmt.Errorf("window_secs must be positive, got %d", p.WindowSecs)
	}
	return nil
}

// Defaults mirrored from spec §4.9 and §5.
const (
	DefaultWorkerPoolSize = 8
	DefaultMaxAttempts    = 3
	DefaultInitialDelaySecs = 60
	DefaultBackoffFactor    = 2.0
	DefaultMaxDelaySecs     = 3600
)

// DefaultRetryConfig returns the spec's default bounded-exponential schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialSecs:  DefaultInitialDelaySecs,
		Factor:       DefaultBackoffFactor,
		MaxDelaySecs: DefaultMaxDelaySecs,
	}
}

// DefaultSignalReadinessConfig returns the spec's §4.8 thresholds.
func DefaultSignalReadinessConfig() map[string]SignalReadinessConfig {
	return map[string]SignalReadinessConfig{
		"swing_trend": {
			RequiredIndicators: []string{"EMA9", "EMA21", "SMA50", "RSI", "MACD", "ATR"},
			MinPeriods:         200,
			MinQualityScore:    0.8,
		},
		"technical": {
			RequiredIndicators: []string{"EMA20", "SMA50", "SMA200", "RSI", "MACD"},
			MinPeriods:         200,
			MinQualityScore:    0.7,
		},
		"hybrid_llm": {
			RequiredIndicators: []string{"EMA20", "SMA50", "SMA200", "RSI", "MACD"},
			MinPeriods:         200,
			MinQualityScore:    0.7,
		},
	}
}
