package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-matcher/internal/types"
)

const matchColumns = `job_id, resume_id, candidate_id, score, matched_skills, missing_skills,
	embedding_similarity, explanation, score_breakdown, scoring_config_version, trace,
	created_at, updated_at`

// UpsertMatch writes a match record in one atomic statement. A conflicting key is
// overwritten in place; created_at is kept and an absent candidate_id never erases
// a stored one. Returns the record as stored.
func (db *DB) UpsertMatch(ctx context.Context, rec *types.MatchRecord) (*types.MatchRecord, error) {
	explanation, err := json.Marshal(rec.Explanation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal explanation: %w", err)
	}
	breakdown, err := marshalOptional(rec.ScoreBreakdown, rec.ScoreBreakdown == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score breakdown: %w", err)
	}
	trace, err := marshalOptional(rec.Trace, rec.Trace == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace: %w", err)
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO match_records (job_id, resume_id, candidate_id, score, matched_skills, missing_skills,
			embedding_similarity, explanation, score_breakdown, scoring_config_version, trace)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (job_id, resume_id) DO UPDATE SET
			candidate_id = COALESCE(EXCLUDED.candidate_id, match_records.candidate_id),
			score = EXCLUDED.score,
			matched_skills = EXCLUDED.matched_skills,
			missing_skills = EXCLUDED.missing_skills,
			embedding_similarity = EXCLUDED.embedding_similarity,
			explanation = EXCLUDED.explanation,
			score_breakdown = EXCLUDED.score_breakdown,
			scoring_config_version = EXCLUDED.scoring_config_version,
			trace = EXCLUDED.trace,
			updated_at = NOW()
		 RETURNING `+matchColumns,
		rec.JobID, rec.ResumeID, nullableUUID(rec.CandidateID), rec.Score,
		nonNilStrings(rec.MatchedSkills), nonNilStrings(rec.MissingSkills),
		rec.EmbeddingSimilarity, explanation, breakdown, rec.ScoringConfigVersion, trace,
	)
	stored, err := scanMatch(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert match %s: %w", rec.Key(), err)
	}
	return stored, nil
}

// GetMatch retrieves the record for a key. Returns nil, nil when absent.
func (db *DB) GetMatch(ctx context.Context, key types.MatchKey) (*types.MatchRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM match_records WHERE job_id = $1 AND resume_id = $2`,
		key.JobID, key.ResumeID,
	)
	rec, err := scanMatch(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get match %s: %w", key, err)
	}
	return rec, nil
}

// DeleteMatch removes the record for exactly one key and reports whether it existed
func (db *DB) DeleteMatch(ctx context.Context, key types.MatchKey) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM match_records WHERE job_id = $1 AND resume_id = $2`,
		key.JobID, key.ResumeID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete match %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// BackfillCandidate sets candidate_id on a record that has none. It does not touch
// the score or updated_at.
func (db *DB) BackfillCandidate(ctx context.Context, key types.MatchKey, candidateID uuid.UUID) error {
	if candidateID == uuid.Nil {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE match_records SET candidate_id = $3
		 WHERE job_id = $1 AND resume_id = $2 AND candidate_id IS NULL`,
		key.JobID, key.ResumeID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("failed to backfill candidate for match %s: %w", key, err)
	}
	return nil
}

// ListMatchesByJob returns all records for a job with score >= minScore, best first
func (db *DB) ListMatchesByJob(ctx context.Context, jobID uuid.UUID, minScore float64) ([]types.MatchRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM match_records
		 WHERE job_id = $1 AND score >= $2
		 ORDER BY score DESC, updated_at DESC, resume_id`,
		jobID, minScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var records []types.MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list matches for job %s: %w", jobID, err)
	}
	return records, nil
}

func scanMatch(row pgx.Row) (*types.MatchRecord, error) {
	var (
		rec         types.MatchRecord
		candidateID *uuid.UUID
		explanation []byte
		breakdown   []byte
		trace       []byte
	)
	err := row.Scan(
		&rec.JobID, &rec.ResumeID, &candidateID, &rec.Score,
		&rec.MatchedSkills, &rec.MissingSkills, &rec.EmbeddingSimilarity,
		&explanation, &breakdown, &rec.ScoringConfigVersion, &trace,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CandidateID = uuidOrNil(candidateID)

	if len(explanation) > 0 {
		if err := json.Unmarshal(explanation, &rec.Explanation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal explanation: %w", err)
		}
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rec.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score breakdown: %w", err)
		}
	}
	if len(trace) > 0 {
		if err := json.Unmarshal(trace, &rec.Trace); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
		}
	}
	return &rec, nil
}

// marshalOptional returns nil (SQL NULL) when absent
func marshalOptional(v any, absent bool) ([]byte, error) {
	if absent {
		return nil, nil
	}
	return json.Marshal(v)
}
