package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/heuristic"
	"github.com/jonathan/resume-matcher/internal/matching"
	"github.com/jonathan/resume-matcher/internal/types"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Preview a match with the local heuristic",
	Long:  "Scores a job and resume with the deterministic local heuristic. Nothing is stored and no scorer is called.",
	RunE:  runSimulate,
}

var (
	simulateJobFile    string
	simulateResumeFile string
	simulateOutput     string
)

func init() {
	simulateCmd.Flags().StringVarP(&simulateJobFile, "job", "j", "", "Path to the job JSON file (required)")
	simulateCmd.Flags().StringVarP(&simulateResumeFile, "resume", "r", "", "Path to the resume JSON file (required)")
	simulateCmd.Flags().StringVarP(&simulateOutput, "out", "o", "", "Path to write the result (default stdout)")

	if err := simulateCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}
	if err := simulateCmd.MarkFlagRequired("resume"); err != nil {
		panic(fmt.Sprintf("failed to mark resume flag as required: %v", err))
	}

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(_ *cobra.Command, _ []string) error {
	var job types.Job
	if err := readJSONFile(simulateJobFile, &job); err != nil {
		return err
	}
	var resume types.Resume
	if err := readJSONFile(simulateResumeFile, &resume); err != nil {
		return err
	}

	orch := matching.New(matching.Config{Simulate: true}, matching.Deps{
		Simulator: heuristic.New(cfg.Heuristic),
		Logger:    log,
	})
	result, err := orch.Simulate(&job, &resume)
	if err != nil {
		return err
	}

	if p := printer(); p != nil {
		p.PrintSimulation(result)
	}
	return writeOutput(result.Record(types.MatchKey{JobID: job.ID, ResumeID: resume.ID}), simulateOutput, "")
}
