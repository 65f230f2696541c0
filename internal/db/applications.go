package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/resume-matcher/internal/types"
)

// ApplicationStatusApplied is the default application status
const ApplicationStatusApplied = "applied"

// UpsertApplication records that a candidate applied to a job. One application per
// (job, candidate); a repeat updates the resume and status.
func (db *DB) UpsertApplication(ctx context.Context, app *types.Application) (*types.Application, error) {
	status := app.Status
	if status == "" {
		status = ApplicationStatusApplied
	}
	id := app.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var out types.Application
	err := db.pool.QueryRow(ctx,
		`INSERT INTO applications (id, job_id, candidate_id, resume_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (job_id, candidate_id) DO UPDATE SET resume_id = $4, status = $5
		 RETURNING id, job_id, candidate_id, resume_id, status, created_at`,
		id, app.JobID, app.CandidateID, app.ResumeID, status,
	).Scan(&out.ID, &out.JobID, &out.CandidateID, &out.ResumeID, &out.Status, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert application: %w", err)
	}
	return &out, nil
}

// ListApplications returns every application for a job
func (db *DB) ListApplications(ctx context.Context, jobID uuid.UUID) ([]types.Application, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, candidate_id, resume_id, status, created_at
		 FROM applications WHERE job_id = $1 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var apps []types.Application
	for rows.Next() {
		var app types.Application
		if err := rows.Scan(&app.ID, &app.JobID, &app.CandidateID, &app.ResumeID, &app.Status, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list applications for job %s: %w", jobID, err)
	}
	return apps, nil
}
