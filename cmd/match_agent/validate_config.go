package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/scoringconfig"
	"github.com/jonathan/resume-matcher/schemas"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate the engine configuration",
	Long:  "Loads the configuration file and MATCH_* environment overrides, merges defaults and checks every value. Prints the effective configuration with secrets removed.",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return writeOutput(cfg, "", "")
	},
}

var validateScoringCmd = &cobra.Command{
	Use:   "validate-scoring",
	Short: "Validate a per-job scoring configuration",
	Long:  "Validates a raw scoring configuration (weights, constraints, version), then prints the merged form that would be sent to a scorer.",
	RunE:  runValidateScoring,
}

var (
	validateScoringInput  string
	validateScoringOutput string
)

func init() {
	validateScoringCmd.Flags().StringVarP(&validateScoringInput, "in", "i", "", "Path to the raw scoring config JSON file (required)")
	validateScoringCmd.Flags().StringVarP(&validateScoringOutput, "out", "o", "", "Path to write the merged config (default stdout)")

	if err := validateScoringCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(validateScoringCmd)
}

func runValidateScoring(_ *cobra.Command, _ []string) error {
	var raw map[string]any
	if err := readJSONFile(validateScoringInput, &raw); err != nil {
		return err
	}

	normalized, err := scoringconfig.ValidateAndNormalize(raw)
	if err != nil {
		return err
	}
	merged := scoringconfig.MergeWithDefaults(normalized)

	if p := printer(); p != nil {
		p.PrintScoringConfig(merged)
	}
	if err := writeOutput(merged, validateScoringOutput, schemas.ScoringConfig); err != nil {
		return err
	}
	if validateScoringOutput != "" {
		_, _ = fmt.Fprintf(os.Stdout, "Scoring config is valid; merged form written to %s\n", validateScoringOutput)
	}
	return nil
}
