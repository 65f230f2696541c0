package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/resume-matcher/internal/types"
)

// UpsertJob stores a job as supplied by the owning application
func (db *DB) UpsertJob(ctx context.Context, job *types.Job) error {
	var cfg []byte
	if job.ScoringConfig != nil {
		var err error
		cfg, err = json.Marshal(job.ScoringConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal scoring config: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, description, required_skills, seniority, location, tags,
			scoring_config, scoring_config_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			title = $2, description = $3, required_skills = $4, seniority = $5, location = $6,
			tags = $7, scoring_config = $8, scoring_config_version = $9, updated_at = NOW()`,
		job.ID, job.Title, job.Description, nonNilStrings(job.RequiredSkills), job.Seniority,
		job.Location, nonNilStrings(job.Tags), cfg, job.ScoringConfigVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns nil, nil when absent.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	var (
		job types.Job
		cfg []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, description, required_skills, seniority, location, tags,
			scoring_config, scoring_config_version
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.Title, &job.Description, &job.RequiredSkills, &job.Seniority,
		&job.Location, &job.Tags, &cfg, &job.ScoringConfigVersion)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &job.ScoringConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scoring config: %w", err)
		}
	}
	return &job, nil
}
