package matching

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-matcher/internal/cache"
	"github.com/jonathan/resume-matcher/internal/memstore"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/types"
)

// memoryKV is an in-memory stand-in for Redis
type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *memoryKV) SetIfEqual(_ context.Context, guardKey, guardValue, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.data[guardKey]
	if !ok {
		current = []byte("0")
	}
	if string(current) != guardValue {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

// hookedStore runs afterGet once, right after the next store read
type hookedStore struct {
	*memstore.Store
	mu       sync.Mutex
	afterGet func()
}

func (h *hookedStore) GetMatch(ctx context.Context, key types.MatchKey) (*types.MatchRecord, error) {
	h.mu.Lock()
	hook := h.afterGet
	h.afterGet = nil
	h.mu.Unlock()
	rec, err := h.Store.GetMatch(ctx, key)
	if hook != nil {
		hook()
	}
	return rec, err
}

type cachedFixture struct {
	*fixture
	backing *hookedStore
	kv      *memoryKV
}

func newCachedFixture(cfg Config) *cachedFixture {
	backing := &hookedStore{Store: memstore.New()}
	kv := newMemoryKV()
	m := metrics.New("test", prometheus.NewRegistry())
	f := &fixture{
		store:     backing.Store,
		scorer:    &MockScorer{},
		publisher: &recordingPublisher{},
		metrics:   m,
	}
	f.orch = New(cfg, Deps{
		Store:     cache.NewStore(backing, kv, time.Minute, nil, m),
		Scorer:    f.scorer,
		Publisher: f.publisher,
		Metrics:   m,
	})
	return &cachedFixture{fixture: f, backing: backing, kv: kv}
}

// assertCoherent fails when Redis holds an entry the store does not agree with
func (c *cachedFixture) assertCoherent(t *testing.T, key types.MatchKey) {
	t.Helper()
	ctx := context.Background()
	stored, err := c.store.GetMatch(ctx, key)
	require.NoError(t, err)
	data, found, err := c.kv.Get(ctx, cache.Key(key))
	require.NoError(t, err)
	if stored == nil {
		assert.False(t, found, "redis holds a record the store no longer has")
		return
	}
	if !found {
		return
	}
	var cached types.MatchRecord
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, stored.Score, cached.Score)
	assert.True(t, stored.UpdatedAt.Equal(cached.UpdatedAt), "redis holds an outdated record")
}

func TestCachedEnsureMatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newCachedFixture(Config{})
	job, resume := testJob(1), testResume()

	first, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.MatchedSkills, again.MatchedSkills)
	}

	assert.Equal(t, 1, f.scorer.Calls())
	assert.True(t, f.kv.has(cache.Key(first.Key())))
}

func TestCachedClearCache_Precision(t *testing.T) {
	ctx := context.Background()
	f := newCachedFixture(Config{})
	job := testJob(1)
	resumeA, resumeB := testResume(), testResume()

	for _, r := range []*types.Resume{resumeA, resumeB} {
		_, err := f.orch.EnsureMatch(ctx, job, r, EnsureOptions{})
		require.NoError(t, err)
		// second call fills redis
		_, err = f.orch.EnsureMatch(ctx, job, r, EnsureOptions{})
		require.NoError(t, err)
	}
	require.Equal(t, 2, f.scorer.Calls())

	cleared, err := f.orch.ClearCache(ctx, job.ID, resumeA.ID)
	require.NoError(t, err)
	assert.True(t, cleared)

	keyA := types.MatchKey{JobID: job.ID, ResumeID: resumeA.ID}
	keyB := types.MatchKey{JobID: job.ID, ResumeID: resumeB.ID}
	assert.False(t, f.kv.has(cache.Key(keyA)))
	assert.True(t, f.kv.has(cache.Key(keyB)))

	_, err = f.orch.EnsureMatch(ctx, job, resumeB, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.scorer.Calls())

	_, err = f.orch.EnsureMatch(ctx, job, resumeA, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, f.scorer.Calls())
}

func TestCachedClearCache_DuringRead(t *testing.T) {
	ctx := context.Background()
	f := newCachedFixture(Config{})
	job, resume := testJob(1), testResume()
	key := types.MatchKey{JobID: job.ID, ResumeID: resume.ID}

	_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	f.backing.mu.Lock()
	f.backing.afterGet = func() {
		cleared, err := f.orch.ClearCache(ctx, job.ID, resume.ID)
		require.NoError(t, err)
		require.True(t, cleared)
	}
	f.backing.mu.Unlock()

	_, err = f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	f.assertCoherent(t, key)

	_, err = f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.scorer.Calls(), "cleared record must be recomputed")
}

func TestCachedForceRefresh_DuringRead(t *testing.T) {
	ctx := context.Background()
	f := newCachedFixture(Config{})
	job, resume := testJob(1), testResume()

	_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	f.scorer.ScoreFunc = func(context.Context, *scorer.Request) (map[string]any, error) {
		return map[string]any{"matchScore": 0.3}, nil
	}
	f.backing.mu.Lock()
	f.backing.afterGet = func() {
		_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{ForceRefresh: true})
		require.NoError(t, err)
	}
	f.backing.mu.Unlock()

	_, err = f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)

	rec, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, rec.Score)
}

func TestCachedConcurrentEnsureAndClear(t *testing.T) {
	ctx := context.Background()
	f := newCachedFixture(Config{})
	job, resume := testJob(1), testResume()
	key := types.MatchKey{JobID: job.ID, ResumeID: resume.ID}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_, err := f.orch.ClearCache(ctx, job.ID, resume.ID)
				assert.NoError(t, err)
				return
			}
			_, err := f.orch.EnsureMatch(ctx, job, resume, EnsureOptions{ForceRefresh: i%5 == 0})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	f.assertCoherent(t, key)

	all, err := f.store.ListMatchesByJob(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(all), 1)

	_, err = f.orch.ClearCache(ctx, job.ID, resume.ID)
	require.NoError(t, err)
	f.assertCoherent(t, key)
	assert.False(t, f.kv.has(cache.Key(key)))
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
