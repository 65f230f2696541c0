package types

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// MatchKey identifies a match record. At most one record exists per key.
type MatchKey struct {
	JobID    uuid.UUID
	ResumeID uuid.UUID
}

// String renders the key as "<job_id>:<resume_id>"
func (k MatchKey) String() string {
	return k.JobID.String() + ":" + k.ResumeID.String()
}

// MatchRecord is the persisted, reusable scoring artifact for a (job, resume) pair
type MatchRecord struct {
	JobID               uuid.UUID   `json:"job_id"`
	ResumeID            uuid.UUID   `json:"resume_id"`
	CandidateID         uuid.UUID   `json:"candidate_id"`
	Score               float64     `json:"score"`
	MatchedSkills       []string    `json:"matched_skills"`
	MissingSkills       []string    `json:"missing_skills"`
	EmbeddingSimilarity float64     `json:"embedding_similarity"`
	Explanation         Explanation `json:"explanation"`
	ScoreBreakdown       Breakdown   `json:"score_breakdown,omitempty"`
	ScoringConfigVersion int         `json:"scoring_config_version"`
	Trace                *Trace      `json:"trace,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Breakdown holds per-area scores on a 0-100 scale. A value is either a float64
// or a nested map[string]any of the same shape, kept as the scorer sent it.
type Breakdown map[string]any

// Clone returns a deep copy
func (b Breakdown) Clone() Breakdown {
	if b == nil {
		return nil
	}
	return cloneBreakdown(b)
}

// Leaves returns every numeric leaf keyed by its dotted path
func (b Breakdown) Leaves() map[string]float64 {
	out := make(map[string]float64)
	collectLeaves("", b, out)
	return out
}

func cloneBreakdown(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch nested := v.(type) {
		case map[string]any:
			out[k] = cloneBreakdown(nested)
		case Breakdown:
			out[k] = cloneBreakdown(nested)
		default:
			out[k] = v
		}
	}
	return out
}

func collectLeaves(prefix string, in map[string]any, out map[string]float64) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case float64:
			out[key] = val
		case map[string]any:
			collectLeaves(key, val, out)
		case Breakdown:
			collectLeaves(key, val, out)
		}
	}
}

// Key returns the record's identity
func (r *MatchRecord) Key() MatchKey {
	return MatchKey{JobID: r.JobID, ResumeID: r.ResumeID}
}

// HasCandidate reports whether the owner reference is set
func (r *MatchRecord) HasCandidate() bool {
	return r.CandidateID != uuid.Nil
}

// Clone returns a deep copy so stored records cannot be mutated through returned values
func (r *MatchRecord) Clone() *MatchRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.MatchedSkills = slices.Clone(r.MatchedSkills)
	out.MissingSkills = slices.Clone(r.MissingSkills)
	out.ScoreBreakdown = r.ScoreBreakdown.Clone()
	out.Explanation = r.Explanation.Clone()
	out.Trace = r.Trace.Clone()
	return &out
}
