package types

import (
	"time"

	"github.com/google/uuid"
)

// Resume is a candidate-owned resume with its parsed data and an optional correction overlay
type Resume struct {
	ID          uuid.UUID          `json:"id"`
	CandidateID uuid.UUID          `json:"candidate_id"`
	Parsed      ParsedProfile      `json:"parsed"`
	Correction  *ProfileCorrection `json:"correction,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ParsedProfile is the structured data extracted from a resume
type ParsedProfile struct {
	Summary    string            `json:"summary,omitempty"`
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
	Location   string            `json:"location,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// CandidateProfile is the effective profile: parsed data with the correction overlay applied.
// It is computed on every read and never stored on its own.
type CandidateProfile ParsedProfile

// ExperienceEntry is one role on a resume. Dates use YYYY-MM or YYYY-MM-DD; an empty End means current.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

// EducationEntry is one education line item
type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Institution string `json:"institution,omitempty"`
	Year        string `json:"year,omitempty"`
}

// ProfileCorrection is a field-level overlay. A nil field is absent and falls back to the base
// profile; a non-nil field (even an empty list) wins.
type ProfileCorrection struct {
	Summary    *string            `json:"summary,omitempty"`
	Skills     *[]string          `json:"skills,omitempty"`
	Experience *[]ExperienceEntry `json:"experience,omitempty"`
	Education  *[]EducationEntry  `json:"education,omitempty"`
	Location   *string            `json:"location,omitempty"`
	Tags       *[]string          `json:"tags,omitempty"`
}
