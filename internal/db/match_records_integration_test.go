//go:build integration

package db

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-matcher/internal/types"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	require.NoError(t, Migrate(dsn, 0, nil))

	db, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func cleanupJob(t *testing.T, db *DB, jobID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, _ = db.pool.Exec(ctx, "DELETE FROM match_records WHERE job_id = $1", jobID)
	_, _ = db.pool.Exec(ctx, "DELETE FROM jobs WHERE id = $1", jobID)
}

func newRecord(jobID, resumeID uuid.UUID, score float64) *types.MatchRecord {
	return &types.MatchRecord{
		JobID:         jobID,
		ResumeID:      resumeID,
		Score:         score,
		MatchedSkills: []string{"Go"},
		MissingSkills: []string{},
		Explanation:   types.Explanation{Source: types.SourceMatcher, Notes: []string{"ok"}},
	}
}

func TestIntegration_MatchRecord_CRUD(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	jobID := uuid.New()
	resumeID := uuid.New()
	defer cleanupJob(t, db, jobID)

	key := types.MatchKey{JobID: jobID, ResumeID: resumeID}

	got, err := db.GetMatch(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := db.UpsertMatch(ctx, newRecord(jobID, resumeID, 0.4))
	require.NoError(t, err)
	assert.Equal(t, 0.4, stored.Score)
	assert.Equal(t, uuid.Nil, stored.CandidateID)
	assert.False(t, stored.CreatedAt.IsZero())

	candidateID := uuid.New()
	require.NoError(t, db.BackfillCandidate(ctx, key, candidateID))

	second := newRecord(jobID, resumeID, 0.9)
	second.ScoreBreakdown = types.Breakdown{"skills": 90.0, "experience": map[string]any{"years": 75.0}}
	updated, err := db.UpsertMatch(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0.9, updated.Score)
	assert.Equal(t, candidateID, updated.CandidateID, "upsert without candidate keeps the stored one")
	assert.Equal(t, stored.CreatedAt, updated.CreatedAt)
	assert.Equal(t, types.Breakdown{"skills": 90.0, "experience": map[string]any{"years": 75.0}}, updated.ScoreBreakdown)
	assert.Equal(t, []string{"ok"}, updated.Explanation.Notes)

	deleted, err := db.DeleteMatch(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteMatch(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestIntegration_MatchRecord_ConcurrentUpsert(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	jobID := uuid.New()
	resumeID := uuid.New()
	defer cleanupJob(t, db, jobID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.UpsertMatch(ctx, newRecord(jobID, resumeID, float64(i)/10))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := db.ListMatchesByJob(ctx, jobID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestIntegration_ListMatchesByJob(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	jobA := uuid.New()
	jobB := uuid.New()
	defer cleanupJob(t, db, jobA)
	defer cleanupJob(t, db, jobB)

	for _, score := range []float64{0.2, 0.8, 0.5} {
		_, err := db.UpsertMatch(ctx, newRecord(jobA, uuid.New(), score))
		require.NoError(t, err)
	}
	_, err := db.UpsertMatch(ctx, newRecord(jobB, uuid.New(), 0.99))
	require.NoError(t, err)

	records, err := db.ListMatchesByJob(ctx, jobA, 0.5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0.8, records[0].Score)
	assert.Equal(t, 0.5, records[1].Score)
}

func TestIntegration_JobsResumesApplications(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	version := 2
	job := &types.Job{
		ID:                   uuid.New(),
		Title:                "Backend Engineer",
		RequiredSkills:       []string{"Go", "SQL"},
		ScoringConfig:        map[string]any{"weights": map[string]any{"skills": 100.0}},
		ScoringConfigVersion: &version,
	}
	defer cleanupJob(t, db, job.ID)
	require.NoError(t, db.UpsertJob(ctx, job))

	gotJob, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, gotJob)
	assert.Equal(t, job.RequiredSkills, gotJob.RequiredSkills)
	require.NotNil(t, gotJob.ScoringConfigVersion)
	assert.Equal(t, 2, *gotJob.ScoringConfigVersion)

	summary := "corrected"
	resume := &types.Resume{
		ID:          uuid.New(),
		CandidateID: uuid.New(),
		Parsed:      types.ParsedProfile{Skills: []string{"go"}},
		Correction:  &types.ProfileCorrection{Summary: &summary},
	}
	defer func() { _, _ = db.pool.Exec(ctx, "DELETE FROM resumes WHERE id = $1", resume.ID) }()
	require.NoError(t, db.UpsertResume(ctx, resume))

	gotResume, err := db.GetResume(ctx, resume.ID)
	require.NoError(t, err)
	require.NotNil(t, gotResume)
	require.NotNil(t, gotResume.Correction)
	assert.Equal(t, "corrected", *gotResume.Correction.Summary)

	candidates, err := db.ListRefreshCandidates(ctx, job.ID, version, 1000)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, r := range candidates {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, resume.ID)

	app, err := db.UpsertApplication(ctx, &types.Application{JobID: job.ID, CandidateID: resume.CandidateID, ResumeID: resume.ID})
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusApplied, app.Status)

	apps, err := db.ListApplications(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, resume.CandidateID, apps[0].CandidateID)
}
