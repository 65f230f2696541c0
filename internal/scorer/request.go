package scorer

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/resume-matcher/internal/profile"
	"github.com/jonathan/resume-matcher/internal/types"
)

// Client scores one (job, resume) pair and returns the scorer's raw JSON object.
// Normalization is left to the caller.
type Client interface {
	Score(ctx context.Context, req *Request) (map[string]any, error)
	Name() string
}

// Request is the body sent to a scorer
type Request struct {
	JobID                uuid.UUID           `json:"job_id"`
	ResumeID             uuid.UUID           `json:"resume_id"`
	CandidateSkills      []string            `json:"candidate_skills"`
	JobSkills            []string            `json:"job_skills"`
	CandidateSummary     string              `json:"candidate_summary"`
	ResumeText           string              `json:"resume_text,omitempty"`
	JobDescription       string              `json:"job_description"`
	ScoringConfig        types.ScoringConfig `json:"scoring_config"`
	ScoringConfigVersion *int                `json:"scoring_config_version,omitempty"`
	Trace                bool                `json:"trace"`

	// RequestID travels in the X-Request-ID header
	RequestID string `json:"-"`
}

// BuildRequest assembles a scorer request from the effective profile and the merged config
func BuildRequest(job *types.Job, resumeID uuid.UUID, p types.CandidateProfile, cfg types.ScoringConfig, trace bool, requestID string) *Request {
	return &Request{
		JobID:                job.ID,
		ResumeID:             resumeID,
		CandidateSkills:      nonNil(p.Skills),
		JobSkills:            nonNil(job.RequiredSkills),
		CandidateSummary:     p.Summary,
		ResumeText:           profile.BuildResumeText(p),
		JobDescription:       job.Description,
		ScoringConfig:        cfg,
		ScoringConfigVersion: job.ScoringConfigVersion,
		Trace:                trace,
		RequestID:            requestID,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
