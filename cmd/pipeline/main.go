package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "pipeline"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Market-data ingestion and computation pipeline",
		Long:    "Drives the C1-C12 ingestion workflow (ingest, validate, compute indicators, aggregate, gate) across a symbol universe, on demand or on a daily-batch schedule.",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "config/pipeline.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().String("env", ".env", "path to a .env overlay for provider API keys (optional)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newDLQCmd())
	rootCmd.AddCommand(newGatesCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("pipeline command failed")
		os.Exit(1)
	}
}

func configFlags(cmd *cobra.Command) (configPath, envPath string) {
	configPath, _ = cmd.Flags().GetString("config")
	envPath, _ = cmd.Flags().GetString("env")
	return configPath, envPath
}
