// Package memstore is an in-memory store with the same semantics as the
// PostgreSQL store. It backs tests and sandbox runs.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-matcher/internal/types"
)

// Store holds jobs, resumes, applications and match records in memory.
// Every method is safe for concurrent use and returns copies.
type Store struct {
	mu           sync.RWMutex
	matches      map[types.MatchKey]*types.MatchRecord
	jobs         map[uuid.UUID]*types.Job
	resumes      map[uuid.UUID]*types.Resume
	applications map[uuid.UUID][]types.Application
	now          func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		matches:      make(map[types.MatchKey]*types.MatchRecord),
		jobs:         make(map[uuid.UUID]*types.Job),
		resumes:      make(map[uuid.UUID]*types.Resume),
		applications: make(map[uuid.UUID][]types.Application),
		now:          time.Now,
	}
}

// WithClock overrides the timestamp source
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// UpsertMatch inserts or overwrites the record for its key in a single critical section.
// created_at is kept on overwrite and an absent candidate never erases a stored one.
func (s *Store) UpsertMatch(_ context.Context, rec *types.MatchRecord) (*types.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stored := rec.Clone()
	if stored.MatchedSkills == nil {
		stored.MatchedSkills = []string{}
	}
	if stored.MissingSkills == nil {
		stored.MissingSkills = []string{}
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if prev, ok := s.matches[rec.Key()]; ok {
		stored.CreatedAt = prev.CreatedAt
		if !stored.HasCandidate() {
			stored.CandidateID = prev.CandidateID
		}
	}
	s.matches[rec.Key()] = stored
	return stored.Clone(), nil
}

// GetMatch returns the record for key, or nil when absent
func (s *Store) GetMatch(_ context.Context, key types.MatchKey) (*types.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matches[key].Clone(), nil
}

// DeleteMatch removes exactly one key and reports whether it existed
func (s *Store) DeleteMatch(_ context.Context, key types.MatchKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.matches[key]
	delete(s.matches, key)
	return ok, nil
}

// BackfillCandidate sets the owner on a record that has none
func (s *Store) BackfillCandidate(_ context.Context, key types.MatchKey, candidateID uuid.UUID) error {
	if candidateID == uuid.Nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.matches[key]; ok && !rec.HasCandidate() {
		rec.CandidateID = candidateID
	}
	return nil
}

// ListMatchesByJob returns the job's records with score >= minScore, best first
func (s *Store) ListMatchesByJob(_ context.Context, jobID uuid.UUID, minScore float64) ([]types.MatchRecord, error) {
	s.mu.RLock()
	var out []types.MatchRecord
	for key, rec := range s.matches {
		if key.JobID == jobID && rec.Score >= minScore {
			out = append(out, *rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ResumeID.String() < out[j].ResumeID.String()
	})
	return out, nil
}

// UpsertJob stores a copy of job
func (s *Store) UpsertJob(_ context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	cp.RequiredSkills = slices.Clone(job.RequiredSkills)
	cp.Tags = slices.Clone(job.Tags)
	s.jobs[job.ID] = &cp
	return nil
}

// GetJob returns the job, or nil when absent
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	cp.RequiredSkills = slices.Clone(job.RequiredSkills)
	cp.Tags = slices.Clone(job.Tags)
	return &cp, nil
}

// UpsertResume stores a copy of resume
func (s *Store) UpsertResume(_ context.Context, resume *types.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *resume
	if prev, ok := s.resumes[resume.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now().UTC()
	}
	s.resumes[resume.ID] = &cp
	return nil
}

// GetResume returns the resume, or nil when absent
func (s *Store) GetResume(_ context.Context, id uuid.UUID) (*types.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resume, ok := s.resumes[id]
	if !ok {
		return nil, nil
	}
	cp := *resume
	return &cp, nil
}

// ListRefreshCandidates returns up to limit resumes with no record for the job or a
// record scored under an older version. Unscored resumes first, then newest.
func (s *Store) ListRefreshCandidates(_ context.Context, jobID uuid.UUID, version, limit int) ([]types.Resume, error) {
	s.mu.RLock()
	type candidate struct {
		resume   types.Resume
		unscored bool
	}
	var list []candidate
	for id, resume := range s.resumes {
		rec, ok := s.matches[types.MatchKey{JobID: jobID, ResumeID: id}]
		if ok && rec.ScoringConfigVersion >= version {
			continue
		}
		list = append(list, candidate{resume: *resume, unscored: !ok})
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].unscored != list[j].unscored {
			return list[i].unscored
		}
		if !list[i].resume.CreatedAt.Equal(list[j].resume.CreatedAt) {
			return list[i].resume.CreatedAt.After(list[j].resume.CreatedAt)
		}
		return list[i].resume.ID.String() < list[j].resume.ID.String()
	})

	if limit >= 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]types.Resume, 0, len(list))
	for _, c := range list {
		out = append(out, c.resume)
	}
	return out, nil
}

// UpsertApplication records one application per (job, candidate)
func (s *Store) UpsertApplication(_ context.Context, app *types.Application) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *app
	if cp.Status == "" {
		cp.Status = "applied"
	}
	apps := s.applications[app.JobID]
	for i := range apps {
		if apps[i].CandidateID == app.CandidateID {
			apps[i].ResumeID = cp.ResumeID
			apps[i].Status = cp.Status
			out := apps[i]
			return &out, nil
		}
	}
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = s.now().UTC()
	s.applications[app.JobID] = append(apps, cp)
	return &cp, nil
}

// ListApplications returns the job's applications in insertion order
func (s *Store) ListApplications(_ context.Context, jobID uuid.UUID) ([]types.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.applications[jobID]), nil
}
