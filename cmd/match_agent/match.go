package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/matching"
	"github.com/jonathan/resume-matcher/internal/types"
	"github.com/jonathan/resume-matcher/schemas"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Return the cached match for a job and resume, computing it if needed",
	Long:  "Serves the stored match record for the (job, resume) pair. On a miss, or with --force, the scorer is called, its response normalized and the record upserted.",
	RunE:  runMatch,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the cached match for exactly one job and resume",
	RunE:  runClear,
}

var reapplyCmd = &cobra.Command{
	Use:   "reapply",
	Short: "Record an application and recompute its match",
	Long:  "Records that the resume's owner applied to the job, then ensures the match. With matching.clear_on_reapply the stored record is cleared and rebuilt first.",
	RunE:  runReapply,
}

var (
	matchJobFile    string
	matchResumeFile string
	matchJobID      string
	matchResumeID   string
	matchForce      bool
	matchRequestID  string
	matchOutput     string
)

func init() {
	for _, c := range []*cobra.Command{matchCmd, reapplyCmd} {
		c.Flags().StringVarP(&matchJobFile, "job", "j", "", "Path to a job JSON file (stored before matching)")
		c.Flags().StringVarP(&matchResumeFile, "resume", "r", "", "Path to a resume JSON file (stored before matching)")
		c.Flags().StringVar(&matchJobID, "job-id", "", "ID of a stored job")
		c.Flags().StringVar(&matchResumeID, "resume-id", "", "ID of a stored resume")
		c.Flags().StringVar(&matchRequestID, "request-id", "", "Request id sent to the scorer (default random)")
		c.Flags().StringVarP(&matchOutput, "out", "o", "", "Path to write the match record (default stdout)")
	}
	matchCmd.Flags().BoolVarP(&matchForce, "force", "f", false, "Recompute even when a record is cached")

	clearCmd.Flags().StringVar(&matchJobID, "job-id", "", "Job id (required)")
	clearCmd.Flags().StringVar(&matchResumeID, "resume-id", "", "Resume id (required)")
	if err := clearCmd.MarkFlagRequired("job-id"); err != nil {
		panic(fmt.Sprintf("failed to mark job-id flag as required: %v", err))
	}
	if err := clearCmd.MarkFlagRequired("resume-id"); err != nil {
		panic(fmt.Sprintf("failed to mark resume-id flag as required: %v", err))
	}

	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(reapplyCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	job, resume, err := resolvePair(cmd, a)
	if err != nil {
		return err
	}

	rec, err := a.matcher.EnsureMatch(ctx, job, resume, matching.EnsureOptions{
		ForceRefresh: matchForce,
		RequestID:    requestID(),
	})
	if err != nil {
		return err
	}
	return emitMatch(rec)
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	jobID, err := parseID("job-id", matchJobID)
	if err != nil {
		return err
	}
	resumeID, err := parseID("resume-id", matchResumeID)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	cleared, err := a.matcher.ClearCache(ctx, jobID, resumeID)
	if err != nil {
		return err
	}
	if cleared {
		_, _ = fmt.Fprintf(os.Stdout, "Cleared match %s\n", types.MatchKey{JobID: jobID, ResumeID: resumeID})
	} else {
		_, _ = fmt.Fprintln(os.Stdout, "No cached match for that job and resume")
	}
	return nil
}

func runReapply(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	job, resume, err := resolvePair(cmd, a)
	if err != nil {
		return err
	}

	if _, err := a.store.UpsertApplication(ctx, &types.Application{
		JobID:       job.ID,
		CandidateID: resume.CandidateID,
		ResumeID:    resume.ID,
	}); err != nil {
		return err
	}

	rec, err := a.matcher.Reapply(ctx, job, resume, requestID())
	if err != nil {
		return err
	}
	return emitMatch(rec)
}

func resolvePair(cmd *cobra.Command, a *app) (*types.Job, *types.Resume, error) {
	ctx := cmd.Context()
	job, err := a.resolveJob(ctx, matchJobFile, matchJobID)
	if err != nil {
		return nil, nil, err
	}
	resume, err := a.resolveResume(ctx, matchResumeFile, matchResumeID)
	if err != nil {
		return nil, nil, err
	}
	return job, resume, nil
}

func emitMatch(rec *types.MatchRecord) error {
	if p := printer(); p != nil {
		p.PrintMatch(rec)
	}
	return writeOutput(rec, matchOutput, schemas.MatchRecord)
}

func requestID() string {
	if matchRequestID != "" {
		return matchRequestID
	}
	return uuid.NewString()
}
