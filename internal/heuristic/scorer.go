// Package heuristic provides a deterministic, local weighted-feature scorer used
// for simulation and sandbox paths when the external scorer is bypassed.
package heuristic

import (
	"fmt"
	"time"

	"github.com/jonathan/resume-matcher/internal/types"
)

// Feature names used in the explanation breakdown
const (
	FeatureSkills     = "skills"
	FeatureExperience = "experience"
	FeatureLocation   = "location"
	FeatureTags       = "tags"
)

// Result is the outcome of a heuristic scoring pass
type Result struct {
	Score         float64
	MatchedSkills []string
	MissingSkills []string
	Explanation   types.Explanation
}

// Scorer combines skill, experience, location and tag sub-scores
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// New creates a scorer. Weights are normalized to sum to 1.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights.Normalized(), now: time.Now}
}

// WithClock replaces the time source used for open-ended roles
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Weights returns the normalized weights in use
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score rates a candidate profile against a job
func (s *Scorer) Score(job *types.Job, profile types.CandidateProfile) *Result {
	skillScore, matched, missing := ScoreSkills(job.RequiredSkills, profile.Skills)
	expScore, years := ScoreExperience(profile.Experience, job.Seniority, s.now())
	locScore, locMatch := ScoreLocation(job.Location, profile.Location)
	tagScore := ScoreTags(job.Tags, profile.Tags)

	w := s.weights
	weighted := w.Skills*skillScore + w.Experience*expScore + w.Location*locScore + w.Tags*tagScore
	combined := 0.0
	if sum := w.Sum(); sum > 0 {
		combined = weighted / sum
	}
	combined = Clamp(combined)

	return &Result{
		Score:         combined,
		MatchedSkills: matched,
		MissingSkills: missing,
		Explanation: types.Explanation{
			Source: types.SourceHeuristic,
			Notes: []string{
				fmt.Sprintf("matched %d of %d required skills", len(matched), len(matched)+len(missing)),
				fmt.Sprintf("%.1f years of experience", years),
			},
			MissingSkills: append([]string{}, missing...),
			Features: map[string]types.FeatureScore{
				FeatureSkills:     {Score: skillScore, Weight: w.Skills},
				FeatureExperience: {Score: expScore, Weight: w.Experience, Detail: fmt.Sprintf("%.1f years", years)},
				FeatureLocation:   {Score: locScore, Weight: w.Location, Detail: string(locMatch)},
				FeatureTags:       {Score: tagScore, Weight: w.Tags},
			},
		},
	}
}

// Record converts the result into a match record for the given key
func (r *Result) Record(key types.MatchKey) *types.MatchRecord {
	return &types.MatchRecord{
		JobID:         key.JobID,
		ResumeID:      key.ResumeID,
		Score:         r.Score,
		MatchedSkills: r.MatchedSkills,
		MissingSkills: r.MissingSkills,
		Explanation:   r.Explanation,
	}
}
