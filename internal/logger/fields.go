package logger

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/types"
)

// Structured log field keys
const (
	FieldJobID       = "job_id"
	FieldResumeID    = "resume_id"
	FieldCandidateID = "candidate_id"
	FieldRequestID   = "request_id"
	FieldCache       = "cache"
	FieldDuration    = "duration"
)

// JobID returns the job_id field
func JobID(id uuid.UUID) zap.Field {
	return zap.Stringer(FieldJobID, id)
}

// ResumeID returns the resume_id field
func ResumeID(id uuid.UUID) zap.Field {
	return zap.Stringer(FieldResumeID, id)
}

// CandidateID returns the candidate_id field
func CandidateID(id uuid.UUID) zap.Field {
	return zap.Stringer(FieldCandidateID, id)
}

// MatchKey returns the job_id and resume_id fields for a key
func MatchKey(key types.MatchKey) []zap.Field {
	return []zap.Field{JobID(key.JobID), ResumeID(key.ResumeID)}
}

// RequestID returns the request_id field, or a skip field when id is blank
func RequestID(id string) zap.Field {
	id = strings.TrimSpace(id)
	if id == "" {
		return zap.Skip()
	}
	return zap.String(FieldRequestID, id)
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil, a no-op logger is used.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
