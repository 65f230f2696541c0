package ranking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-matcher/internal/matching"
	"github.com/jonathan/resume-matcher/internal/memstore"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/types"
)

// stepClock returns a strictly increasing time on every call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// MockEnsurer implements Ensurer for testing
type MockEnsurer struct {
	EnsureMatchFunc func(ctx context.Context, job *types.Job, resume *types.Resume, opts matching.EnsureOptions) (*types.MatchRecord, error)
	calls           atomic.Int32
	inFlight        atomic.Int32
	maxInFlight     atomic.Int32
}

func (m *MockEnsurer) EnsureMatch(ctx context.Context, job *types.Job, resume *types.Resume, opts matching.EnsureOptions) (*types.MatchRecord, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxInFlight.Load()
		if n <= prev || m.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if m.EnsureMatchFunc != nil {
		return m.EnsureMatchFunc(ctx, job, resume, opts)
	}
	return &types.MatchRecord{JobID: job.ID, ResumeID: resume.ID}, nil
}

func newJob() *types.Job {
	return &types.Job{ID: uuid.New(), Title: "Data Engineer", RequiredSkills: []string{"Go", "SQL"}}
}

func seedMatch(t *testing.T, store *memstore.Store, jobID, resumeID, candidateID uuid.UUID, score float64) {
	t.Helper()
	_, err := store.UpsertMatch(context.Background(), &types.MatchRecord{
		JobID:       jobID,
		ResumeID:    resumeID,
		CandidateID: candidateID,
		Score:       score,
	})
	require.NoError(t, err)
}

func newAggregator(store *memstore.Store, ensurer Ensurer, cfg Config) *Aggregator {
	return New(cfg, Deps{Matches: store, Directory: store, Ensurer: ensurer})
}

func TestRankCandidates_BestResumePerCandidate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New().WithClock(newStepClock().Now)
	job := newJob()

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	aliceStrong, aliceWeak := uuid.New(), uuid.New()
	bobResume, carolResume := uuid.New(), uuid.New()

	seedMatch(t, store, job.ID, aliceWeak, alice, 0.6)
	seedMatch(t, store, job.ID, aliceStrong, alice, 0.9)
	seedMatch(t, store, job.ID, bobResume, bob, 0.7)
	seedMatch(t, store, job.ID, carolResume, carol, 0.3)

	_, err := store.UpsertApplication(ctx, &types.Application{JobID: job.ID, CandidateID: bob, ResumeID: bobResume})
	require.NoError(t, err)

	result, err := newAggregator(store, &MockEnsurer{}, Config{}).RankCandidates(ctx, job, Options{MinScore: 0.5})
	require.NoError(t, err)

	require.Len(t, result.Suggested, 1)
	assert.Equal(t, alice, result.Suggested[0].CandidateID)
	assert.Equal(t, aliceStrong, result.Suggested[0].ResumeID)
	assert.Equal(t, 0.9, result.Suggested[0].Score)
	assert.False(t, result.Suggested[0].Applied)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, bob, result.Applied[0].CandidateID)
	assert.True(t, result.Applied[0].Applied)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 0, result.Refreshed)
	assert.Empty(t, result.Failed)
}

func TestRankCandidates_TieGoesToMostRecentResume(t *testing.T) {
	ctx := context.Background()
	store := memstore.New().WithClock(newStepClock().Now)
	job := newJob()
	candidate := uuid.New()

	older := &types.Resume{ID: uuid.New(), CandidateID: candidate}
	newer := &types.Resume{ID: uuid.New(), CandidateID: candidate}
	require.NoError(t, store.UpsertResume(ctx, older))
	require.NoError(t, store.UpsertResume(ctx, newer))

	// the older resume's record is the more recently scored one
	seedMatch(t, store, job.ID, newer.ID, candidate, 0.8)
	seedMatch(t, store, job.ID, older.ID, candidate, 0.8)

	for i := 0; i < 5; i++ {
		result, err := newAggregator(store, &MockEnsurer{}, Config{}).RankCandidates(ctx, job, Options{})
		require.NoError(t, err)
		require.Len(t, result.Suggested, 1)
		assert.Equal(t, newer.ID, result.Suggested[0].ResumeID)
	}
}

func TestRankCandidates_HigherScoreBeatsNewerResume(t *testing.T) {
	ctx := context.Background()
	store := memstore.New().WithClock(newStepClock().Now)
	job := newJob()
	candidate := uuid.New()

	older := &types.Resume{ID: uuid.New(), CandidateID: candidate}
	newer := &types.Resume{ID: uuid.New(), CandidateID: candidate}
	require.NoError(t, store.UpsertResume(ctx, older))
	require.NoError(t, store.UpsertResume(ctx, newer))

	seedMatch(t, store, job.ID, older.ID, candidate, 0.9)
	seedMatch(t, store, job.ID, newer.ID, candidate, 0.6)

	result, err := newAggregator(store, &MockEnsurer{}, Config{}).RankCandidates(ctx, job, Options{})
	require.NoError(t, err)
	require.Len(t, result.Suggested, 1)
	assert.Equal(t, older.ID, result.Suggested[0].ResumeID)
	assert.Equal(t, 0.9, result.Suggested[0].Score)
}

func TestRankCandidates_ResolvesOwnerFromResume(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newJob()

	owner := uuid.New()
	resume := &types.Resume{ID: uuid.New(), CandidateID: owner}
	require.NoError(t, store.UpsertResume(ctx, resume))

	seedMatch(t, store, job.ID, resume.ID, uuid.Nil, 0.7)
	seedMatch(t, store, job.ID, uuid.New(), uuid.Nil, 0.9) // orphan, resume unknown

	result, err := newAggregator(store, &MockEnsurer{}, Config{}).RankCandidates(ctx, job, Options{})
	require.NoError(t, err)
	require.Len(t, result.Suggested, 1)
	assert.Equal(t, owner, result.Suggested[0].CandidateID)
	assert.Equal(t, resume.ID, result.Suggested[0].ResumeID)
}

func TestRankCandidates_Pagination(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newJob()

	scores := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	for _, s := range scores {
		seedMatch(t, store, job.ID, uuid.New(), uuid.New(), s)
	}
	agg := newAggregator(store, &MockEnsurer{}, Config{})

	page, err := agg.RankCandidates(ctx, job, Options{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Suggested, 2)
	assert.Equal(t, 0.8, page.Suggested[0].Score)
	assert.Equal(t, 0.7, page.Suggested[1].Score)
	assert.Equal(t, 5, page.Total)

	all, err := agg.RankCandidates(ctx, job, Options{})
	require.NoError(t, err)
	assert.Len(t, all.Suggested, 5)

	past, err := agg.RankCandidates(ctx, job, Options{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Suggested)
	assert.NotNil(t, past.Suggested)
}

func TestRankCandidates_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newJob()
	for i := 0; i < 5; i++ {
		seedMatch(t, store, job.ID, uuid.New(), uuid.New(), 0.5)
	}

	result, err := newAggregator(store, &MockEnsurer{}, Config{DefaultLimit: 3}).RankCandidates(ctx, job, Options{})
	require.NoError(t, err)
	assert.Len(t, result.Suggested, 3)
	assert.Equal(t, 5, result.Total)
}

func TestRankCandidates_RefreshScoresUnscoredResumes(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newJob()
	require.NoError(t, store.UpsertJob(ctx, job))

	strong := &types.Resume{ID: uuid.New(), CandidateID: uuid.New(), Parsed: types.ParsedProfile{Skills: []string{"go", "sql"}}}
	weak := &types.Resume{ID: uuid.New(), CandidateID: uuid.New(), Parsed: types.ParsedProfile{Skills: []string{"excel"}}}
	require.NoError(t, store.UpsertResume(ctx, strong))
	require.NoError(t, store.UpsertResume(ctx, weak))

	orch := matching.New(matching.Config{Simulate: true}, matching.Deps{Store: store})
	result, err := newAggregator(store, orch, Config{}).RankCandidates(ctx, job, Options{Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Refreshed)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Suggested, 2)
	assert.Equal(t, strong.ID, result.Suggested[0].ResumeID)
	assert.Equal(t, weak.ID, result.Suggested[1].ResumeID)
}

func TestRankCandidates_RefreshFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	job := newJob()

	var resumes []*types.Resume
	for i := 0; i < 4; i++ {
		r := &types.Resume{ID: uuid.New(), CandidateID: uuid.New()}
		require.NoError(t, store.UpsertResume(ctx, r))
		resumes = append(resumes, r)
	}
	bad := map[uuid.UUID]bool{resumes[1].ID: true, resumes[3].ID: true}

	ensurer := &MockEnsurer{
		EnsureMatchFunc: func(ctx context.Context, job *types.Job, resume *types.Resume, opts matching.EnsureOptions) (*types.MatchRecord, error) {
			assert.True(t, opts.ForceRefresh)
			if bad[resume.ID] {
				return nil, errors.New("scorer unavailable")
			}
			return store.UpsertMatch(ctx, &types.MatchRecord{JobID: job.ID, ResumeID: resume.ID, CandidateID: resume.CandidateID, Score: 0.5})
		},
	}

	agg := New(Config{}, Deps{Matches: store, Directory: store, Ensurer: ensurer, Metrics: m})
	result, err := agg.RankCandidates(ctx, job, Options{Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Refreshed)
	require.Len(t, result.Failed, 2)
	assert.ElementsMatch(t, []uuid.UUID{resumes[1].ID, resumes[3].ID}, result.Failed)
	assert.True(t, result.Failed[0].String() < result.Failed[1].String())
	assert.Len(t, result.Suggested, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefreshFailures))
}

func TestRankCandidates_RefreshIsBounded(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	job := newJob()
	for i := 0; i < 30; i++ {
		require.NoError(t, store.UpsertResume(ctx, &types.Resume{ID: uuid.New(), CandidateID: uuid.New()}))
	}

	ensurer := &MockEnsurer{}
	agg := newAggregator(store, ensurer, Config{RefreshBatchSize: 10, RefreshConcurrency: 3})
	result, err := agg.RankCandidates(ctx, job, Options{Refresh: true})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Refreshed)
	assert.Equal(t, int32(10), ensurer.calls.Load())
	assert.LessOrEqual(t, ensurer.maxInFlight.Load(), int32(3))
}

func TestRankCandidates_RefreshSkipsCurrentRecords(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	version := 2
	job := newJob()
	job.ScoringConfigVersion = &version

	current := &types.Resume{ID: uuid.New(), CandidateID: uuid.New()}
	outdated := &types.Resume{ID: uuid.New(), CandidateID: uuid.New()}
	require.NoError(t, store.UpsertResume(ctx, current))
	require.NoError(t, store.UpsertResume(ctx, outdated))

	_, err := store.UpsertMatch(ctx, &types.MatchRecord{JobID: job.ID, ResumeID: current.ID, ScoringConfigVersion: 2})
	require.NoError(t, err)
	_, err = store.UpsertMatch(ctx, &types.MatchRecord{JobID: job.ID, ResumeID: outdated.ID, ScoringConfigVersion: 1})
	require.NoError(t, err)

	var mu sync.Mutex
	var refreshed []uuid.UUID
	ensurer := &MockEnsurer{
		EnsureMatchFunc: func(_ context.Context, job *types.Job, resume *types.Resume, _ matching.EnsureOptions) (*types.MatchRecord, error) {
			mu.Lock()
			refreshed = append(refreshed, resume.ID)
			mu.Unlock()
			return &types.MatchRecord{JobID: job.ID, ResumeID: resume.ID}, nil
		},
	}

	_, err = newAggregator(store, ensurer, Config{}).RankCandidates(ctx, job, Options{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{outdated.ID}, refreshed)
}

func TestRankCandidates_NilJob(t *testing.T) {
	_, err := newAggregator(memstore.New(), &MockEnsurer{}, Config{}).RankCandidates(context.Background(), nil, Options{})
	var nf *matching.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestPaginate(t *testing.T) {
	list := []Candidate{{Score: 3}, {Score: 2}, {Score: 1}}
	assert.Len(t, paginate(list, 0, 2), 2)
	assert.Len(t, paginate(list, -1, 5), 3)
	assert.Empty(t, paginate(list, 3, 2))
	assert.Equal(t, 1.0, paginate(list, 2, 2)[0].Score)
}
