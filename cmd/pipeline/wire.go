package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/marketpipe/ingestor/internal/checkpoint"
	"github.com/marketpipe/ingestor/internal/config"
	"github.com/marketpipe/ingestor/internal/dlq"
	"github.com/marketpipe/ingestor/internal/httpapi"
	"github.com/marketpipe/ingestor/internal/metrics"
	"github.com/marketpipe/ingestor/internal/orchestrator"
	"github.com/marketpipe/ingestor/internal/persistence"
	"github.com/marketpipe/ingestor/internal/persistence/postgres"
	"github.com/marketpipe/ingestor/internal/providers"
	"github.com/marketpipe/ingestor/internal/providers/fake"
	"github.com/marketpipe/ingestor/internal/providers/ratelimit"
	"github.com/marketpipe/ingestor/internal/retry"
	"github.com/marketpipe/ingestor/internal/validate"
)

// app bundles every wired dependency a subcommand might need. Each
// subcommand pulls only the fields it uses and defers Close, which
// closes db/redisClient on exit.
type app struct {
	cfg              *config.Config
	db               *sqlx.DB
	redisClient      *redis.Client
	metrics          *metrics.Registry
	checkpoints      *checkpoint.Store
	dlq              *dlq.Queue
	orchestratorRepo persistence.OrchestratorRepo
	orchestrator     *orchestrator.Orchestrator
}

// bootstrap loads config and wires the full dependency graph the same
// way for every subcommand, so `run`, `resume`, `dlq`, and `serve` all
// observe one consistent set of repositories and engines.
func bootstrap(configPath, envPath string) (*app, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime.Duration())

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	}

	limiter := ratelimit.New()
	provider := buildProviderChain(cfg, limiter)

	metricsRegistry := metrics.NewRegistry()
	validator := validate.New(requiredIndicators())

	checkpointRepo := postgres.NewCheckpointRepo(db)
	dlqRepo := postgres.NewDLQRepo(db)
	orchestratorRepo := postgres.NewOrchestratorRepo(db)

	checkpoints := checkpoint.New(checkpointRepo, redisClient)
	dlqQueue := dlq.New(dlqRepo)

	orch := orchestrator.New(orchestrator.Deps{
		Providers:        provider,
		Validator:        validator,
		BarRepo:          postgres.NewBarRepo(db),
		IndicatorRepo:    postgres.NewIndicatorRepo(db),
		FinancialRepo:    postgres.NewFinancialStatementRepo(db),
		FundamentalsRepo: postgres.NewEnhancedFundamentalsRepo(db),
		ReportRepo:       postgres.NewValidationReportRepo(db),
		Orchestrator:     orchestratorRepo,
		Checkpoints:      checkpoints,
		DLQ:              dlqQueue,
		GateAudit:        postgres.NewGateAuditRepo(db),
		Retry:            retry.New(cfg.Retry),
		SignalConfigs:    cfg.Gates.SignalReadiness,
		WorkerPoolSize:   cfg.Orchestrator.WorkerPoolSize,
		Metrics:          metricsRegistry,
	})

	return &app{
		cfg:              cfg,
		db:               db,
		redisClient:      redisClient,
		metrics:          metricsRegistry,
		checkpoints:      checkpoints,
		dlq:              dlqQueue,
		orchestratorRepo: orchestratorRepo,
		orchestrator:     orch,
	}, nil
}

func (a *app) Close() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	_ = a.db.Close()
}

// buildProviderChain wraps each configured provider in a circuit
// breaker plus the shared rate limiter, then composes them into a
// FallbackChain in the declared fallback order. Only the fake adapter
// ships in this tree (spec §9 open question: real HTTP adapters are a
// future addition); any provider entry not named "fake" in config is
// still configured for rate limiting and wrapped, so a real adapter
// only has to be registered here once written.
func buildProviderChain(cfg *config.Config, limiter *ratelimit.Limiter) providers.Provider {
	order := cfg.Providers.FallbackOrder
	if len(order) == 0 {
		order = []string{cfg.Providers.DefaultProvider}
	}

	var chain []providers.Provider
	for _, name := range order {
		pc, ok := cfg.Providers.Providers[name]
		if !ok || !pc.Enabled {
			continue
		}
		limiter.Configure(name, ratelimit.Config{
			Capacity:      pc.Burst,
			WindowSeconds: pc.WindowSecs,
			MonthlyBudget: int64(pc.DailyBudget) * 30,
			WarnThreshold: 0.9,
		})

		var base providers.Provider = fake.New(name, 0.02, 0.0)
		guarded := providers.NewGuarded(base, providers.BreakerConfig{
			FailureThreshold: pc.Circuit.FailureThreshold,
			OpenTimeout:      time.Duration(pc.Circuit.OpenTimeoutSecs) * time.Second,
			HalfOpenMaxCalls: pc.Circuit.HalfOpenMaxCalls,
		}, limiter)
		chain = append(chain, guarded)
	}
	if len(chain) == 0 {
		chain = append(chain, fake.New("fake", 0.02, 0.0))
	}
	return providers.NewFallbackChain(chain...)
}

// requiredIndicators is the C3 IndicatorData check's trailing-window
// requirement, matching the indicator engine's own longest lookback
// (SMA200) so a bar set that passes validation always has enough
// history for every downstream indicator.
func requiredIndicators() []validate.RequiredIndicator {
	return []validate.RequiredIndicator{
		{Name: "SMA200", MinPeriods: 200},
	}
}

func newHTTPServer(a *app) (*httpapi.Server, error) {
	return httpapi.NewServer(httpapi.DefaultServerConfig(), httpapi.Deps{
		Orchestrator: a.orchestratorRepo,
		DLQ:          a.dlq,
		Checkpoints:  a.checkpoints,
		Runner:       a.orchestrator,
		Metrics:      a.metrics,
	})
}
