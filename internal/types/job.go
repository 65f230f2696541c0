// Package types provides type definitions for structured data used throughout the resume-matcher engine.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a job requisition as supplied by the owning application
type Job struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RequiredSkills []string  `json:"required_skills"`
	Seniority      string    `json:"seniority,omitempty"` // junior, mid, senior, or empty
	Location       string    `json:"location,omitempty"`
	Tags           []string  `json:"tags,omitempty"`

	// ScoringConfig is the raw, owner-supplied configuration. It is validated
	// and merged into a working copy on every scoring call and never mutated.
	ScoringConfig map[string]any `json:"scoring_config,omitempty"`
	// ScoringConfigVersion is the version stamped by the owner whenever the
	// weights or constraints change.
	ScoringConfigVersion *int `json:"scoring_config_version,omitempty"`
}

// Application records that a candidate already applied to a job
type Application struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	ResumeID    uuid.UUID `json:"resume_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
