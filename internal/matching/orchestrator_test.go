package matching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-matcher/internal/events"
	"github.com/jonathan/resume-matcher/internal/memstore"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/scoringconfig"
	"github.com/jonathan/resume-matcher/internal/types"
)

// MockScorer implements scorer.Client for testing
type MockScorer struct {
	ScoreFunc func(ctx context.Context, req *scorer.Request) (map[string]any, error)
	calls     atomic.Int32
}

func (m *MockScorer) Score(ctx context.Context, req *scorer.Request) (map[string]any, error) {
	m.calls.Add(1)
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, req)
	}
	return map[string]any{
		"matchScore":    0.8,
		"matchedSkills": []any{"Go"},
		"missingSkills": []any{"SQL"},
		"notes":         "solid backend experience",
	}, nil
}

func (m *MockScorer) Name() string { return "mock" }

func (m *MockScorer) Calls() int { return int(m.calls.Load()) }

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.MatchEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	orch      *Orchestrator
	store     *memstore.Store
	scorer    *MockScorer
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		store:     memstore.New(),
		scorer:    &MockScorer{},
		publisher: &recordingPublisher{},
		metrics:   metrics.New("test", prometheus.NewRegistry()),
	}
	f.orch = New(cfg, Deps{
		Store:     f.store,
		Scorer:    f.scorer,
		Publisher: f.publisher,
		Metrics:   f.metrics,
	})
	return f
}

func testJob(version int) *types.Job {
	return &types.Job{
		ID:                   uuid.New(),
		Title:                "Backend Engineer",
		Description:          "Go services on Postgres",
		RequiredSkills:       []string{"Go", "SQL"},
		ScoringConfigVersion: &version,
	}
}

func testResume() *types.Resume {
	return &types.Resume{
		ID:          uuid.New(),
		CandidateID: uuid.New(),
		Parsed: types.ParsedProfile{
			Summary: "Backend engineer",
			Skills:  []string{"go", "python"},
		},
	}
}

func TestEnsureMatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()

	first, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	second, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.scorer.Calls())
	assert.Equal(t, first, second)
	assert.Equal(t, 0.8, first.Score)
	assert.Equal(t, []string{"Go"}, first.MatchedSkills)
	assert.Equal(t, resume.CandidateID, first.CandidateID)
	assert.Equal(t, types.SourceMatcher, first.Explanation.Source)
	assert.Equal(t, []string{"solid backend experience"}, first.Explanation.Notes)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EnsureTotal.WithLabelValues(metrics.OutcomeComputed, "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EnsureTotal.WithLabelValues(metrics.OutcomeHit, "false")))
	assert.Equal(t, []string{events.TypeMatchComputed}, f.publisher.types())
}

func TestEnsureMatch_ForceRefreshOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()

	_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	f.scorer.ScoreFunc = func(context.Context, *scorer.Request) (map[string]any, error) {
		return map[string]any{"match_score": 0.35}, nil
	}
	refreshed, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, 2, f.scorer.Calls())
	assert.Equal(t, 0.35, refreshed.Score)

	stored, err := f.store.GetMatch(ctx, refreshed.Key())
	require.NoError(t, err)
	assert.Equal(t, 0.35, stored.Score)

	all, err := f.store.ListMatchesByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureMatch_UpstreamFailureLeavesPriorRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()

	prior, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	upstreamErr := &scorer.UpstreamError{StatusCode: 500, Message: "model crashed"}
	f.scorer.ScoreFunc = func(context.Context, *scorer.Request) (map[string]any, error) {
		return nil, upstreamErr
	}

	_, err = f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{ForceRefresh: true})
	require.Error(t, err)
	assert.Same(t, upstreamErr, err)
	assert.Equal(t, 503, HTTPStatus(err))

	stored, err := f.store.GetMatch(ctx, prior.Key())
	require.NoError(t, err)
	assert.Equal(t, prior.Score, stored.Score)
	assert.Equal(t, prior.UpdatedAt, stored.UpdatedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ScorerErrors.WithLabelValues("upstream")))
}

func TestEnsureMatch_TimeoutWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	f.scorer.ScoreFunc = func(context.Context, *scorer.Request) (map[string]any, error) {
		return nil, &scorer.TimeoutError{RequestID: "r"}
	}
	job, resume := testJob(1), testResume()

	_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{RequestID: "r"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	rec, err := f.store.GetMatch(ctx, types.MatchKey{JobID: job.ID, ResumeID: resume.ID})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, f.publisher.types())
}

func TestEnsureMatch_InvalidScoringConfig(t *testing.T) {
	f := newFixture(Config{})
	job := testJob(1)
	job.ScoringConfig = map[string]any{
		"weights": map[string]any{"skills": 40, "experience": 30, "education": 20, "keywords": 9},
	}

	_, err := f.orch.EnsureMatch(context.Background(), job, testResume(), EnsureOptions{})
	var vErr *scoringconfig.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, scoringconfig.CodeWeightSumMismatch, vErr.Code)
	assert.Equal(t, 400, HTTPStatus(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 0, f.scorer.Calls())
}

func TestEnsureMatch_BuildsRequestFromEffectiveProfile(t *testing.T) {
	f := newFixture(Config{Trace: true})
	var got *scorer.Request
	f.scorer.ScoreFunc = func(_ context.Context, req *scorer.Request) (map[string]any, error) {
		got = req
		return map[string]any{"score": 0.5}, nil
	}

	job := testJob(4)
	job.ScoringConfig = map[string]any{
		"weights":     map[string]any{"skills": 70, "experience": 10, "education": 10, "keywords": 10},
		"constraints": map[string]any{"mustHaveSkills": []any{"Go"}},
	}
	resume := testResume()
	corrected := []string{"Go", "Kubernetes"}
	resume.Correction = &types.ProfileCorrection{Skills: &corrected}

	_, err := f.orch.EnsureMatch(context.Background(), job, resume, EnsureOptions{RequestID: "req-42"})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"Go", "Kubernetes"}, got.CandidateSkills)
	assert.Equal(t, []string{"Go", "SQL"}, got.JobSkills)
	assert.Equal(t, "Backend engineer", got.CandidateSummary)
	assert.Equal(t, job.Description, got.JobDescription)
	assert.Contains(t, got.ResumeText, "Skills: Go, Kubernetes")
	assert.Equal(t, 70.0, got.ScoringConfig.Weights.Skills)
	assert.Equal(t, []string{"Go"}, got.ScoringConfig.Constraints.MustHaveSkills)
	assert.Equal(t, 4, got.ScoringConfig.Version)
	require.NotNil(t, got.ScoringConfigVersion)
	assert.Equal(t, 4, *got.ScoringConfigVersion)
	assert.True(t, got.Trace)
	assert.Equal(t, "req-42", got.RequestID)
}

func TestEnsureMatch_VersionPriority(t *testing.T) {
	ctx := context.Background()

	t.Run("response version wins", func(t *testing.T) {
		f := newFixture(Config{})
		f.scorer.ScoreFunc = func(context.Context, *scorer.Request) (map[string]any, error) {
			return map[string]any{"score": 0.5, "scoringConfigVersion": "7"}, nil
		}
		rec, err := f.orch.EnsureMatch(ctx, testJob(3), testResume(), EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, 7, rec.ScoringConfigVersion)
	})

	t.Run("job stamp when response has none", func(t *testing.T) {
		f := newFixture(Config{})
		rec, err := f.orch.EnsureMatch(ctx, testJob(3), testResume(), EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, rec.ScoringConfigVersion)
	})

	t.Run("merged config version when job has no stamp", func(t *testing.T) {
		f := newFixture(Config{})
		job := testJob(0)
		job.ScoringConfigVersion = nil
		job.ScoringConfig = map[string]any{"version": 2}
		rec, err := f.orch.EnsureMatch(ctx, job, testResume(), EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, rec.ScoringConfigVersion)
	})
}

func TestEnsureMatch_TraceHandling(t *testing.T) {
	ctx := context.Background()
	withTrace := func(context.Context, *scorer.Request) (map[string]any, error) {
		return map[string]any{"score": 0.5, "trace": map[string]any{"model": "m1", "spans": 3}}, nil
	}

	off := newFixture(Config{})
	off.scorer.ScoreFunc = withTrace
	rec, err := off.orch.EnsureMatch(ctx, testJob(1), testResume(), EnsureOptions{RequestID: "r1"})
	require.NoError(t, err)
	assert.Nil(t, rec.Trace)

	on := newFixture(Config{Trace: true})
	on.scorer.ScoreFunc = withTrace
	rec, err = on.orch.EnsureMatch(ctx, testJob(1), testResume(), EnsureOptions{RequestID: "r1"})
	require.NoError(t, err)
	require.NotNil(t, rec.Trace)
	assert.Equal(t, "m1", rec.Trace.Model)
	assert.Equal(t, "r1", rec.Trace.RequestID)
	assert.Contains(t, rec.Trace.Extra, "spans")
}

func TestEnsureMatch_BackfillsCandidateOnHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()
	key := types.MatchKey{JobID: job.ID, ResumeID: resume.ID}

	_, err := f.store.UpsertMatch(ctx, &types.MatchRecord{JobID: job.ID, ResumeID: resume.ID, Score: 0.6})
	require.NoError(t, err)
	before, err := f.store.GetMatch(ctx, key)
	require.NoError(t, err)

	rec, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, resume.CandidateID, rec.CandidateID)
	assert.Equal(t, 0.6, rec.Score)
	assert.Equal(t, 0, f.scorer.Calls())

	stored, err := f.store.GetMatch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, resume.CandidateID, stored.CandidateID)
	assert.Equal(t, before.UpdatedAt, stored.UpdatedAt)
}

func TestEnsureMatch_SimulateUsesHeuristic(t *testing.T) {
	f := newFixture(Config{Simulate: true})
	job := testJob(2)
	resume := testResume()
	resume.Parsed.Skills = []string{"go", "python", "sql"}

	rec, err := f.orch.EnsureMatch(context.Background(), job, resume, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.scorer.Calls())
	assert.Equal(t, types.SourceHeuristic, rec.Explanation.Source)
	assert.Equal(t, []string{"Go", "SQL"}, rec.MatchedSkills)
	assert.Equal(t, []string{}, rec.MissingSkills)
	assert.Equal(t, 2, rec.ScoringConfigVersion)
}

func TestEnsureMatch_NoScorerFallsBackToHeuristic(t *testing.T) {
	orch := New(Config{}, Deps{Store: memstore.New()})
	rec, err := orch.EnsureMatch(context.Background(), testJob(1), testResume(), EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeuristic, rec.Explanation.Source)
}

func TestEnsureMatch_MissingInputs(t *testing.T) {
	f := newFixture(Config{})

	_, err := f.orch.EnsureMatch(context.Background(), nil, testResume(), EnsureOptions{})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "job", nf.Kind)
	assert.Equal(t, 404, HTTPStatus(err))

	_, err = f.orch.EnsureMatch(context.Background(), testJob(1), nil, EnsureOptions{})
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "resume", nf.Kind)
}

func TestEnsureMatch_PublishErrorIsNotFatal(t *testing.T) {
	f := newFixture(Config{})
	f.publisher.err = errors.New("broker down")

	rec, err := f.orch.EnsureMatch(context.Background(), testJob(1), testResume(), EnsureOptions{})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestEnsureMatch_ConcurrentMissesKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := f.store.ListMatchesByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.GreaterOrEqual(t, f.scorer.Calls(), 1)
}

func TestClearCache_Precision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	jobA, jobB := testJob(1), testJob(1)
	resumeA, resumeB := testResume(), testResume()

	for _, pair := range []struct {
		job    *types.Job
		resume *types.Resume
	}{{jobA, resumeA}, {jobA, resumeB}, {jobB, resumeA}} {
		_, err := f.orch.EnsureMatch(ctx, pair.job, pair.resume, EnsureOptions{})
		require.NoError(t, err)
	}

	cleared, err := f.orch.ClearCache(ctx, jobA.ID, resumeA.ID)
	require.NoError(t, err)
	assert.True(t, cleared)

	gone, err := f.store.GetMatch(ctx, types.MatchKey{JobID: jobA.ID, ResumeID: resumeA.ID})
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, key := range []types.MatchKey{{JobID: jobA.ID, ResumeID: resumeB.ID}, {JobID: jobB.ID, ResumeID: resumeA.ID}} {
		rec, err := f.store.GetMatch(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, rec)
	}

	cleared, err = f.orch.ClearCache(ctx, jobA.ID, resumeA.ID)
	require.NoError(t, err)
	assert.False(t, cleared)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Invalidations))
	assert.Contains(t, f.publisher.types(), events.TypeMatchCleared)
}

func TestReapply(t *testing.T) {
	ctx := context.Background()

	t.Run("clear on reapply recomputes", func(t *testing.T) {
		f := newFixture(Config{ClearOnReapply: true})
		job, resume := testJob(1), testResume()
		_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
		require.NoError(t, err)

		_, err = f.orch.Reapply(ctx, job, resume, "")
		require.NoError(t, err)
		assert.Equal(t, 2, f.scorer.Calls())
		assert.Equal(t, []string{events.TypeMatchComputed, events.TypeMatchCleared, events.TypeMatchComputed}, f.publisher.types())
	})

	t.Run("without clear it is a normal ensure", func(t *testing.T) {
		f := newFixture(Config{})
		job, resume := testJob(1), testResume()
		_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
		require.NoError(t, err)

		_, err = f.orch.Reapply(ctx, job, resume, "")
		require.NoError(t, err)
		assert.Equal(t, 1, f.scorer.Calls())
	})
}

func TestSimulate_DoesNotTouchStore(t *testing.T) {
	f := newFixture(Config{})
	job, resume := testJob(1), testResume()

	result, err := f.orch.Simulate(job, resume)
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeuristic, result.Explanation.Source)

	rec, err := f.store.GetMatch(context.Background(), types.MatchKey{JobID: job.ID, ResumeID: resume.ID})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, f.scorer.Calls())
}

func TestIsStale(t *testing.T) {
	job := testJob(3)
	assert.True(t, IsStale(nil, job))
	assert.True(t, IsStale(&types.MatchRecord{ScoringConfigVersion: 2}, job))
	assert.False(t, IsStale(&types.MatchRecord{ScoringConfigVersion: 3}, job))

	job.ScoringConfigVersion = nil
	assert.False(t, IsStale(&types.MatchRecord{}, job))
}
