package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketpipe/ingestor/internal/persistence"
)

// newRunCmd builds the `run` command: a one-shot on_demand or
// daily_batch workflow execution, or (with --daemon) a long-lived
// process that fires a fresh daily_batch workflow on the configured
// cron schedule (spec §6's daily_batch trigger, C12).
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow across a symbol set",
		Long:  "Runs the full ingestion-through-signal-readiness pipeline for the given symbols, either once (on_demand) or as a daemon firing daily_batch on the configured cron schedule.",
		RunE:  runExecute,
	}
	cmd.Flags().String("symbols", "", "comma-separated symbol list (required)")
	cmd.Flags().String("type", "on_demand", "workflow type: on_demand|daily_batch")
	cmd.Flags().Bool("force", false, "overwrite stored bars even when the incoming rows are not newer")
	cmd.Flags().Bool("daemon", false, "start a cron daemon firing daily_batch on orchestrator.daily_batch_cron instead of running once")
	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	symbolsFlag, _ := cmd.Flags().GetString("symbols")
	wfType, _ := cmd.Flags().GetString("type")
	force, _ := cmd.Flags().GetBool("force")
	daemon, _ := cmd.Flags().GetBool("daemon")

	symbols := splitSymbols(symbolsFlag)
	if len(symbols) == 0 {
		return fmt.Errorf("--symbols is required")
	}
	if wfType != string(persistence.WorkflowOnDemand) && wfType != string(persistence.WorkflowDailyBatch) {
		return fmt.Errorf("--type must be on_demand or daily_batch, got %q", wfType)
	}

	configPath, envPath := configFlags(cmd)
	a, err := bootstrap(configPath, envPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if daemon {
		return runDaemon(a, symbols)
	}

	workflowID := uuid.New().String()
	log.Info().Str("workflow_id", workflowID).Strs("symbols", symbols).Str("type", wfType).Msg("starting workflow")
	if err := a.orchestrator.ExecuteWorkflow(cmd.Context(), workflowID, persistence.WorkflowType(wfType), symbols, force); err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}
	log.Info().Str("workflow_id", workflowID).Msg("workflow finished")
	return nil
}

// runDaemon schedules a daily_batch workflow on cfg.Orchestrator.DailyBatchCron
// and blocks until interrupted. Each tick gets its own workflow_id; a
// failure on one tick does not stop future ticks.
func runDaemon(a *app, symbols []string) error {
	schedule := a.cfg.Orchestrator.DailyBatchCron
	if schedule == "" {
		return fmt.Errorf("orchestrator.daily_batch_cron is not set in config")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		workflowID := uuid.New().String()
		log.Info().Str("workflow_id", workflowID).Msg("daily_batch tick")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Orchestrator.ProviderTimeout.Duration()*time.Duration(len(symbols)+1))
		defer cancel()
		if err := a.orchestrator.ExecuteWorkflow(ctx, workflowID, persistence.WorkflowDailyBatch, symbols, false); err != nil {
			log.Error().Err(err).Str("workflow_id", workflowID).Msg("daily_batch workflow failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid daily_batch_cron %q: %w", schedule, err)
	}

	log.Info().Str("schedule", schedule).Strs("symbols", symbols).Msg("daily_batch daemon started")
	c.Start()
	defer c.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("daily_batch daemon stopping")
	return nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
