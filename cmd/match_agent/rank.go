package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidates for a job",
	Long:  "Ranks cached matches for a job, keeping each candidate's best resume and separating candidates who already applied. With --refresh, a bounded batch of unscored or outdated resumes is rescored first.",
	RunE:  runRank,
}

var (
	rankJobID    string
	rankMinScore float64
	rankLimit    int
	rankOffset   int
	rankRefresh  bool
	rankOutput   string
)

func init() {
	rankCmd.Flags().StringVar(&rankJobID, "job-id", "", "ID of a stored job (required)")
	rankCmd.Flags().Float64Var(&rankMinScore, "min-score", 0, "Minimum match score to include")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 0, "Page size (default ranking.default_limit)")
	rankCmd.Flags().IntVar(&rankOffset, "offset", 0, "Number of suggested candidates to skip")
	rankCmd.Flags().BoolVar(&rankRefresh, "refresh", false, "Rescore a bounded batch of eligible resumes first")
	rankCmd.Flags().StringVarP(&rankOutput, "out", "o", "", "Path to write the ranking (default stdout)")

	if err := rankCmd.MarkFlagRequired("job-id"); err != nil {
		panic(fmt.Sprintf("failed to mark job-id flag as required: %v", err))
	}

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if rankMinScore < 0 || rankMinScore > 1 {
		return fmt.Errorf("--min-score must be between 0 and 1, got %g", rankMinScore)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(ctx, "", rankJobID)
	if err != nil {
		return err
	}

	result, err := a.aggregator.RankCandidates(ctx, job, ranking.Options{
		MinScore:  rankMinScore,
		Limit:     rankLimit,
		Offset:    rankOffset,
		Refresh:   rankRefresh,
		RequestID: uuid.NewString(),
	})
	if err != nil {
		return err
	}

	if p := printer(); p != nil {
		p.PrintRanking(result)
	}
	return writeOutput(result, rankOutput, "")
}
