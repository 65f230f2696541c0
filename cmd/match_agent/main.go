// Package main provides the match_agent CLI: it scores, caches and ranks
// job/resume matches against a configured scorer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/config"
	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/matching"
)

// exitRetryable is returned when the scorer was unavailable and the same call may succeed later
const exitRetryable = 75

var (
	configPath string
	debugFlag  bool
	jsonLogs   bool
	verbose    bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "match_agent",
	Short: "Job/resume match scoring and cache engine",
	Long:  "match_agent computes, caches and ranks compatibility scores between resumes and job requisitions using an external scorer, an LLM scorer or a local heuristic.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		merged := loaded.MergeWithDefaults(config.Default())
		if cmd.Flags().Changed("debug") {
			merged.Log.Debug = debugFlag
		}
		if cmd.Flags().Changed("json-logs") {
			merged.Log.JSON = jsonLogs
		}
		cfg = &merged

		l, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file (MATCH_* env vars override it)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print human-readable summaries to stderr")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if matching.IsRetryable(err) {
			os.Exit(exitRetryable)
		}
		os.Exit(1)
	}
}
