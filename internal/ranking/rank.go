// Package ranking turns a job's cached match records into a ranked, paginated
// list of candidates, keeping the best resume per candidate and splitting out
// candidates who already applied.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/matching"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/types"
)

// DefaultLimit is the page size used when a caller gives none
const DefaultLimit = 50

// MatchLister reads a job's cached records, best first
type MatchLister interface {
	ListMatchesByJob(ctx context.Context, jobID uuid.UUID, minScore float64) ([]types.MatchRecord, error)
}

// Directory resolves applications and resumes owned by the surrounding application
type Directory interface {
	ListApplications(ctx context.Context, jobID uuid.UUID) ([]types.Application, error)
	GetResume(ctx context.Context, id uuid.UUID) (*types.Resume, error)
	ListRefreshCandidates(ctx context.Context, jobID uuid.UUID, version, limit int) ([]types.Resume, error)
}

// Ensurer computes or returns a cached match
type Ensurer interface {
	EnsureMatch(ctx context.Context, job *types.Job, resume *types.Resume, opts matching.EnsureOptions) (*types.MatchRecord, error)
}

// Config bounds refresh fan-out and pagination
type Config struct {
	RefreshBatchSize   int
	RefreshConcurrency int
	DefaultLimit       int
}

// Deps are the aggregator's collaborators
type Deps struct {
	Matches   MatchLister
	Directory Directory
	Ensurer   Ensurer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Options are per-call ranking options
type Options struct {
	MinScore  float64
	Limit     int
	Offset    int
	Refresh   bool
	RequestID string
}

// Candidate is one ranked candidate with their best-scoring resume
type Candidate struct {
	CandidateID   uuid.UUID          `json:"candidate_id"`
	ResumeID      uuid.UUID          `json:"resume_id"`
	Score         float64            `json:"score"`
	MatchedSkills []string           `json:"matched_skills"`
	MissingSkills []string           `json:"missing_skills"`
	Applied       bool               `json:"applied"`
	Match         *types.MatchRecord `json:"match,omitempty"`
}

// Result is a ranking page. Failed lists resumes whose refresh failed; the rest
// of the ranking is still valid.
type Result struct {
	JobID     uuid.UUID   `json:"job_id"`
	Suggested []Candidate `json:"suggested"`
	Applied   []Candidate `json:"applied"`
	Total     int         `json:"total"`
	Refreshed int         `json:"refreshed"`
	Failed    []uuid.UUID `json:"failed"`
}

// Aggregator ranks candidates for a job
type Aggregator struct {
	cfg       Config
	matches   MatchLister
	directory Directory
	ensurer   Ensurer
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates an aggregator. Zero config values fall back to 25 resumes per
// refresh, 4 concurrent scorer calls and DefaultLimit.
func New(cfg Config, deps Deps) *Aggregator {
	if cfg.RefreshBatchSize <= 0 {
		cfg.RefreshBatchSize = 25
	}
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = 4
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	return &Aggregator{
		cfg:       cfg,
		matches:   deps.Matches,
		directory: deps.Directory,
		ensurer:   deps.Ensurer,
		metrics:   deps.Metrics,
		logger:    logger.OrNop(deps.Logger).Named("ranking"),
	}
}

// RankCandidates returns the job's suggested and applied candidates, best first.
// With opts.Refresh a bounded batch of unscored or outdated resumes is recomputed
// before the cache is read.
func (a *Aggregator) RankCandidates(ctx context.Context, job *types.Job, opts Options) (*Result, error) {
	if job == nil {
		return nil, &matching.NotFoundError{Kind: "job"}
	}
	log := logger.WithFields(a.logger, logger.JobID(job.ID), logger.RequestID(opts.RequestID))

	result := &Result{JobID: job.ID, Suggested: []Candidate{}, Applied: []Candidate{}, Failed: []uuid.UUID{}}

	apps, err := a.directory.ListApplications(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	applied := make(map[uuid.UUID]bool, len(apps))
	for _, app := range apps {
		applied[app.CandidateID] = true
	}

	if opts.Refresh {
		refreshed, failed, err := a.refresh(ctx, log, job, opts.RequestID)
		if err != nil {
			return nil, err
		}
		result.Refreshed = refreshed
		result.Failed = failed
	}

	records, err := a.matches.ListMatchesByJob(ctx, job.ID, opts.MinScore)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	best, err := a.bestPerCandidate(ctx, log, records)
	if err != nil {
		return nil, err
	}

	for _, c := range best {
		if applied[c.CandidateID] {
			c.Applied = true
			result.Applied = append(result.Applied, c)
			continue
		}
		result.Suggested = append(result.Suggested, c)
	}

	result.Total = len(result.Suggested)
	result.Suggested = paginate(result.Suggested, opts.Offset, a.limit(opts.Limit))

	a.metrics.ObserveRanking(len(result.Suggested))
	log.Info("candidates ranked",
		zap.Int("records", len(records)),
		zap.Int("suggested", len(result.Suggested)),
		zap.Int("applied", len(result.Applied)),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// refresh force-recomputes a bounded batch of eligible resumes through a bounded
// worker pool. A failing resume is recorded and never stops the batch.
func (a *Aggregator) refresh(ctx context.Context, log *zap.Logger, job *types.Job, requestID string) (int, []uuid.UUID, error) {
	version := 0
	if job.ScoringConfigVersion != nil {
		version = *job.ScoringConfigVersion
	}

	resumes, err := a.directory.ListRefreshCandidates(ctx, job.ID, version, a.cfg.RefreshBatchSize)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list refresh candidates: %w", err)
	}
	if len(resumes) == 0 {
		return 0, []uuid.UUID{}, nil
	}

	var (
		mu        sync.Mutex
		refreshed int
		failed    = []uuid.UUID{}
	)

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.RefreshConcurrency)
	for i := range resumes {
		resume := &resumes[i]
		g.Go(func() error {
			_, err := a.ensurer.EnsureMatch(ctx, job, resume, matching.EnsureOptions{ForceRefresh: true, RequestID: requestID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, resume.ID)
				log.Warn("resume refresh failed", logger.ResumeID(resume.ID), zap.Error(err))
				return nil
			}
			refreshed++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i].String() < failed[j].String() })
	a.metrics.ObserveRefreshFailures(len(failed))
	log.Debug("refresh batch done", zap.Int("batch", len(resumes)), zap.Int("refreshed", refreshed), zap.Int("failed", len(failed)))
	return refreshed, failed, nil
}

// bestPerCandidate keeps each owner's highest-scoring record. Ties within one
// owner go to the most recently created resume, then the lowest resume id.
// Candidates come back ordered by score, then record recency, then resume id.
func (a *Aggregator) bestPerCandidate(ctx context.Context, log *zap.Logger, records []types.MatchRecord) ([]Candidate, error) {
	resumes := newResumeLookup(a.directory)

	byOwner := make(map[uuid.UUID][]*types.MatchRecord)
	var owners []uuid.UUID
	for i := range records {
		rec := &records[i]
		owner, err := a.owner(ctx, resumes, rec)
		if err != nil {
			return nil, err
		}
		if owner == uuid.Nil {
			log.Debug("skipping match without owner", logger.ResumeID(rec.ResumeID))
			continue
		}
		if _, ok := byOwner[owner]; !ok {
			owners = append(owners, owner)
		}
		byOwner[owner] = append(byOwner[owner], rec)
	}

	out := make([]Candidate, 0, len(owners))
	for _, owner := range owners {
		rec, err := pickBest(ctx, resumes, byOwner[owner])
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			CandidateID:   owner,
			ResumeID:      rec.ResumeID,
			Score:         rec.Score,
			MatchedSkills: rec.MatchedSkills,
			MissingSkills: rec.MissingSkills,
			Match:         rec,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if ui, uj := out[i].Match.UpdatedAt, out[j].Match.UpdatedAt; !ui.Equal(uj) {
			return ui.After(uj)
		}
		return out[i].ResumeID.String() < out[j].ResumeID.String()
	})
	return out, nil
}

// pickBest returns the top-scoring record, looking resumes up only when the
// top score is shared
func pickBest(ctx context.Context, resumes *resumeLookup, recs []*types.MatchRecord) (*types.MatchRecord, error) {
	best := recs[0]
	for _, rec := range recs[1:] {
		if rec.Score > best.Score {
			best = rec
		}
	}

	var tied []*types.MatchRecord
	for _, rec := range recs {
		if rec.Score == best.Score {
			tied = append(tied, rec)
		}
	}
	if len(tied) == 1 {
		return best, nil
	}

	created := make(map[uuid.UUID]time.Time, len(tied))
	for _, rec := range tied {
		resume, err := resumes.get(ctx, rec.ResumeID)
		if err != nil {
			return nil, err
		}
		if resume != nil {
			created[rec.ResumeID] = resume.CreatedAt
		}
	}
	sort.SliceStable(tied, func(i, j int) bool {
		ci, cj := created[tied[i].ResumeID], created[tied[j].ResumeID]
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return tied[i].ResumeID.String() < tied[j].ResumeID.String()
	})
	return tied[0], nil
}

// owner returns the record's candidate, falling back to the resume's owner
func (a *Aggregator) owner(ctx context.Context, resumes *resumeLookup, rec *types.MatchRecord) (uuid.UUID, error) {
	if rec.HasCandidate() {
		return rec.CandidateID, nil
	}
	resume, err := resumes.get(ctx, rec.ResumeID)
	if err != nil {
		return uuid.Nil, err
	}
	if resume == nil {
		return uuid.Nil, nil
	}
	return resume.CandidateID, nil
}

// resumeLookup memoizes resume reads for one ranking call
type resumeLookup struct {
	directory Directory
	seen      map[uuid.UUID]*types.Resume
}

func newResumeLookup(d Directory) *resumeLookup {
	return &resumeLookup{directory: d, seen: make(map[uuid.UUID]*types.Resume)}
}

func (l *resumeLookup) get(ctx context.Context, id uuid.UUID) (*types.Resume, error) {
	if resume, ok := l.seen[id]; ok {
		return resume, nil
	}
	resume, err := l.directory.GetResume(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load resume %s: %w", id, err)
	}
	l.seen[id] = resume
	return resume, nil
}

func (a *Aggregator) limit(requested int) int {
	if requested <= 0 {
		return a.cfg.DefaultLimit
	}
	return requested
}

func paginate(list []Candidate, offset, limit int) []Candidate {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []Candidate{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
