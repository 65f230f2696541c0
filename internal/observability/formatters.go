// Package observability provides formatted output utilities for the CLI's verbose mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/resume-matcher/internal/heuristic"
	"github.com/jonathan/resume-matcher/internal/normalize"
	"github.com/jonathan/resume-matcher/internal/ranking"
	"github.com/jonathan/resume-matcher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintMatch outputs a human-readable summary of a stored match record.
func (p *Printer) PrintMatch(rec *types.MatchRecord) {
	if rec == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", rec.JobID))
	sb.WriteString(fmt.Sprintf("Resume:   %s\n", rec.ResumeID))
	if rec.HasCandidate() {
		sb.WriteString(fmt.Sprintf("Owner:    %s\n", rec.CandidateID))
	}
	sb.WriteString(fmt.Sprintf("Score:    %.2f", rec.Score))
	if rec.EmbeddingSimilarity > 0 {
		sb.WriteString(fmt.Sprintf(" (similarity %.2f)", rec.EmbeddingSimilarity))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Source:   %s   Config v%d\n", sourceOrUnknown(rec.Explanation.Source), rec.ScoringConfigVersion))

	writeList(&sb, "Matched", rec.MatchedSkills)
	writeList(&sb, "Missing", rec.MissingSkills)

	if len(rec.ScoreBreakdown) > 0 {
		sb.WriteString("\nBreakdown:\n")
		leaves := rec.ScoreBreakdown.Leaves()
		keys := make([]string, 0, len(leaves))
		for k := range leaves {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %-20s %6.1f\n", k, leaves[k]))
		}
	}

	if len(rec.Explanation.Notes) > 0 {
		sb.WriteString("\nNotes:\n")
		count := min(len(rec.Explanation.Notes), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", rec.Explanation.Notes[i]))
		}
	}

	if rec.Trace != nil {
		sb.WriteString(fmt.Sprintf("\nTrace: request=%s model=%s latency=%dms\n", rec.Trace.RequestID, rec.Trace.Model, rec.Trace.LatencyMS))
	}

	p.printBox("MATCH RECORD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSimulation outputs the local heuristic's per-feature breakdown.
func (p *Printer) PrintSimulation(result *heuristic.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score: %.2f\n", result.Score))
	writeList(&sb, "Matched", result.MatchedSkills)
	writeList(&sb, "Missing", result.MissingSkills)

	if len(result.Explanation.Features) > 0 {
		sb.WriteString("\nFeatures:\n")
		for _, name := range []string{heuristic.FeatureSkills, heuristic.FeatureExperience, heuristic.FeatureLocation, heuristic.FeatureTags} {
			f, ok := result.Explanation.Features[name]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %-11s %.2f x %.2f", name, f.Score, f.Weight))
			if f.Detail != "" {
				sb.WriteString(fmt.Sprintf("  (%s)", f.Detail))
			}
			sb.WriteString("\n")
		}
	}

	p.printBox("HEURISTIC SIMULATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintNormalized shows which payload key fed each logical field.
func (p *Printer) PrintNormalized(m *normalize.Match) {
	if m == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score: %.2f\n", m.Score))
	if m.ScoringConfigVersion != nil {
		sb.WriteString(fmt.Sprintf("Config version: %d\n", *m.ScoringConfigVersion))
	}
	sb.WriteString("\nSources:\n")
	if len(m.Sources) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, entry := range m.SourceKeys() {
		field, key, _ := strings.Cut(entry, "=")
		sb.WriteString(fmt.Sprintf("  %-24s <- %s\n", field, key))
	}

	p.printBox("NORMALIZED RESPONSE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRanking outputs the top suggested candidates and the applied list.
func (p *Printer) PrintRanking(result *ranking.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job: %s\n", result.JobID))
	sb.WriteString(fmt.Sprintf("Suggested: %d of %d   Applied: %d\n", len(result.Suggested), result.Total, len(result.Applied)))
	if result.Refreshed > 0 || len(result.Failed) > 0 {
		sb.WriteString(fmt.Sprintf("Refreshed: %d   Failed: %d\n", result.Refreshed, len(result.Failed)))
	}

	if len(result.Suggested) > 0 {
		sb.WriteString("\n")
		count := min(len(result.Suggested), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := result.Suggested[i]
			sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, c.CandidateID))
			sb.WriteString(fmt.Sprintf("    Score: %.2f  Resume: %s\n", c.Score, shortID(c.ResumeID.String())))
			if len(c.MatchedSkills) > 0 {
				sb.WriteString(fmt.Sprintf("    Skills: %s\n", truncate(strings.Join(c.MatchedSkills, ", "), 40)))
			}
		}
		if len(result.Suggested) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more candidates\n", len(result.Suggested)-maxItemsToShow))
		}
	}

	if len(result.Failed) > 0 {
		sb.WriteString("\nFailed resumes:\n")
		for _, id := range result.Failed {
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", id))
		}
	}

	p.printBox("CANDIDATE RANKING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScoringConfig outputs a merged scoring configuration.
func (p *Printer) PrintScoringConfig(cfg types.ScoringConfig) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Version: %d\n\nWeights:\n", cfg.Version))
	for _, key := range types.WeightKeys {
		sb.WriteString(fmt.Sprintf("  %-11s %5.1f\n", key, cfg.Weights.Get(key)))
	}
	writeList(&sb, "Must have", cfg.Constraints.MustHaveSkills)
	writeList(&sb, "Nice to have", cfg.Constraints.NiceToHaveSkills)
	if cfg.Constraints.MinYears != nil {
		sb.WriteString(fmt.Sprintf("Min years: %.1f\n", *cfg.Constraints.MinYears))
	}

	p.printBox("SCORING CONFIG", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", label, truncate(strings.Join(items, ", "), 40)))
}

func sourceOrUnknown(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
