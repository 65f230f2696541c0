package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-matcher/internal/types"
)

// UpsertResume stores a resume with its parsed data and correction overlay
func (db *DB) UpsertResume(ctx context.Context, resume *types.Resume) error {
	parsed, err := json.Marshal(resume.Parsed)
	if err != nil {
		return fmt.Errorf("failed to marshal parsed profile: %w", err)
	}
	correction, err := marshalOptional(resume.Correction, resume.Correction == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal correction: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO resumes (id, candidate_id, parsed, correction)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET candidate_id = $2, parsed = $3, correction = $4`,
		resume.ID, resume.CandidateID, parsed, correction,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resume %s: %w", resume.ID, err)
	}
	return nil
}

// GetResume retrieves a resume by ID. Returns nil, nil when absent.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*types.Resume, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, candidate_id, parsed, correction, created_at FROM resumes WHERE id = $1`,
		id,
	)
	resume, err := scanResume(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume %s: %w", id, err)
	}
	return resume, nil
}

// ListRefreshCandidates returns up to limit resumes whose match for the job is
// missing or was scored under an older config version. Unscored resumes come
// first, then the newest.
func (db *DB) ListRefreshCandidates(ctx context.Context, jobID uuid.UUID, version, limit int) ([]types.Resume, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.id, r.candidate_id, r.parsed, r.correction, r.created_at
		 FROM resumes r
		 LEFT JOIN match_records m ON m.resume_id = r.id AND m.job_id = $1
		 WHERE m.resume_id IS NULL OR m.scoring_config_version < $2
		 ORDER BY (m.resume_id IS NULL) DESC, r.created_at DESC, r.id
		 LIMIT $3`,
		jobID, version, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh candidates for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var resumes []types.Resume
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		resumes = append(resumes, *resume)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list refresh candidates for job %s: %w", jobID, err)
	}
	return resumes, nil
}

func scanResume(row pgx.Row) (*types.Resume, error) {
	var (
		resume     types.Resume
		parsed     []byte
		correction []byte
	)
	if err := row.Scan(&resume.ID, &resume.CandidateID, &parsed, &correction, &resume.CreatedAt); err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &resume.Parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parsed profile: %w", err)
		}
	}
	if len(correction) > 0 {
		if err := json.Unmarshal(correction, &resume.Correction); err != nil {
			return nil, fmt.Errorf("failed to unmarshal correction: %w", err)
		}
	}
	return &resume, nil
}
