package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/normalize"
	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/types"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a raw scorer response",
	Long:  "Reads a raw scorer response, maps snake_case, camelCase and legacy keys onto the canonical match fields and prints the resulting record. Useful for auditing a scorer's payload shape.",
	RunE:  runNormalize,
}

var (
	normalizeInput    string
	normalizeOutput   string
	normalizeJobID    string
	normalizeResumeID string
)

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeInput, "in", "i", "", "Path to the raw scorer response JSON file (required)")
	normalizeCmd.Flags().StringVarP(&normalizeOutput, "out", "o", "", "Path to write the normalized record (default stdout)")
	normalizeCmd.Flags().StringVar(&normalizeJobID, "job-id", "", "Job id to stamp on the record")
	normalizeCmd.Flags().StringVar(&normalizeResumeID, "resume-id", "", "Resume id to stamp on the record")

	if err := normalizeCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(_ *cobra.Command, _ []string) error {
	content, err := readFile(normalizeInput)
	if err != nil {
		return err
	}
	raw, err := scorer.DecodeResponse(content, "")
	if err != nil {
		return err
	}

	key, err := optionalKey(normalizeJobID, normalizeResumeID)
	if err != nil {
		return err
	}

	match := normalize.Normalize(raw)
	if p := printer(); p != nil {
		p.PrintNormalized(match)
	}
	return writeOutput(match.Record(key), normalizeOutput, "")
}

func optionalKey(jobID, resumeID string) (types.MatchKey, error) {
	var key types.MatchKey
	if jobID != "" {
		id, err := uuid.Parse(jobID)
		if err != nil {
			return key, fmt.Errorf("invalid --job-id %q: %w", jobID, err)
		}
		key.JobID = id
	}
	if resumeID != "" {
		id, err := uuid.Parse(resumeID)
		if err != nil {
			return key, fmt.Errorf("invalid --resume-id %q: %w", resumeID, err)
		}
		key.ResumeID = id
	}
	return key, nil
}
