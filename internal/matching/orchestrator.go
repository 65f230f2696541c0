// Package matching owns the match cache: it serves stored match records, computes
// missing or forced ones through a scorer and persists them with a single upsert.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/events"
	"github.com/jonathan/resume-matcher/internal/heuristic"
	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/normalize"
	"github.com/jonathan/resume-matcher/internal/profile"
	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/scoringconfig"
	"github.com/jonathan/resume-matcher/internal/types"
)

const tracerName = "github.com/jonathan/resume-matcher/internal/matching"

// Store persists match records. UpsertMatch must be atomic per key.
type Store interface {
	GetMatch(ctx context.Context, key types.MatchKey) (*types.MatchRecord, error)
	UpsertMatch(ctx context.Context, rec *types.MatchRecord) (*types.MatchRecord, error)
	DeleteMatch(ctx context.Context, key types.MatchKey) (bool, error)
	BackfillCandidate(ctx context.Context, key types.MatchKey, candidateID uuid.UUID) error
}

// Config controls orchestrator behavior
type Config struct {
	// Simulate scores with the local heuristic instead of the external scorer
	Simulate bool
	// Trace asks the scorer for diagnostics and keeps them on the record
	Trace bool
	// ClearOnReapply drops the stored record before a reapply recompute
	ClearOnReapply bool
}

// Deps are the orchestrator's collaborators. Only Store is required.
type Deps struct {
	Store     Store
	Scorer    scorer.Client
	Simulator *heuristic.Scorer
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// EnsureOptions are per-call options for EnsureMatch
type EnsureOptions struct {
	ForceRefresh bool
	RequestID    string
}

// Orchestrator is the match cache. It holds no per-key locks: concurrent misses
// for the same key may both call the scorer and the store's upsert settles it.
type Orchestrator struct {
	cfg       Config
	store     Store
	scorer    scorer.Client
	simulator *heuristic.Scorer
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates an orchestrator
func New(cfg Config, deps Deps) *Orchestrator {
	simulator := deps.Simulator
	if simulator == nil {
		simulator = heuristic.New(heuristic.DefaultWeights())
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		scorer:    deps.Scorer,
		simulator: simulator,
		publisher: publisher,
		metrics:   deps.Metrics,
		logger:    logger.OrNop(deps.Logger).Named("matching"),
		tracer:    otel.Tracer(tracerName),
	}
}

// EnsureMatch returns the stored record for (job, resume), computing and storing it
// when absent or when opts.ForceRefresh is set. A scorer failure writes nothing and
// leaves any prior record untouched.
func (o *Orchestrator) EnsureMatch(ctx context.Context, job *types.Job, resume *types.Resume, opts EnsureOptions) (*types.MatchRecord, error) {
	if err := checkInputs(job, resume); err != nil {
		return nil, err
	}
	key := types.MatchKey{JobID: job.ID, ResumeID: resume.ID}

	ctx, span := o.tracer.Start(ctx, "matching.EnsureMatch", trace.WithAttributes(
		attribute.String("job_id", key.JobID.String()),
		attribute.String("resume_id", key.ResumeID.String()),
		attribute.Bool("force_refresh", opts.ForceRefresh),
	))
	defer span.End()

	log := logger.WithFields(o.logger, append(logger.MatchKey(key), logger.RequestID(opts.RequestID))...)

	if !opts.ForceRefresh {
		rec, err := o.store.GetMatch(ctx, key)
		if err != nil {
			o.fail(span, err, opts.ForceRefresh)
			return nil, fmt.Errorf("failed to read match %s: %w", key, err)
		}
		if rec != nil {
			o.backfillCandidate(ctx, log, rec, resume)
			span.SetAttributes(attribute.String(logger.FieldCache, "hit"))
			o.metrics.ObserveEnsure(metrics.OutcomeHit, false)
			log.Debug("match cache hit", zap.String(logger.FieldCache, "hit"))
			return rec, nil
		}
	}
	span.SetAttributes(attribute.String(logger.FieldCache, "miss"))

	rec, err := o.compute(ctx, log, job, resume, opts.RequestID)
	if err != nil {
		o.fail(span, err, opts.ForceRefresh)
		return nil, err
	}

	stored, err := o.store.UpsertMatch(ctx, rec)
	if err != nil {
		o.fail(span, err, opts.ForceRefresh)
		return nil, fmt.Errorf("failed to store match %s: %w", key, err)
	}

	o.metrics.ObserveEnsure(metrics.OutcomeComputed, opts.ForceRefresh)
	span.SetAttributes(attribute.Float64("score", stored.Score))
	log.Info("match computed",
		zap.Float64("score", stored.Score),
		zap.String("source", stored.Explanation.Source),
		zap.Int("scoring_config_version", stored.ScoringConfigVersion),
		zap.Bool("forced", opts.ForceRefresh),
	)

	o.publish(ctx, log, events.Computed(stored, opts.ForceRefresh, opts.RequestID))
	return stored, nil
}

// ClearCache deletes the record for exactly one key and reports whether it existed
func (o *Orchestrator) ClearCache(ctx context.Context, jobID, resumeID uuid.UUID) (bool, error) {
	key := types.MatchKey{JobID: jobID, ResumeID: resumeID}

	ctx, span := o.tracer.Start(ctx, "matching.ClearCache", trace.WithAttributes(
		attribute.String("job_id", jobID.String()),
		attribute.String("resume_id", resumeID.String()),
	))
	defer span.End()

	deleted, err := o.store.DeleteMatch(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to clear match %s: %w", key, err)
	}

	log := logger.WithFields(o.logger, logger.MatchKey(key)...)
	if deleted {
		o.metrics.ObserveInvalidation()
		log.Info("match cleared")
		o.publish(ctx, log, events.Cleared(key))
	}
	return deleted, nil
}

// Reapply recomputes a match after the candidate reapplies. With ClearOnReapply the
// stored record is cleared and rebuilt; otherwise it is a normal ensure.
func (o *Orchestrator) Reapply(ctx context.Context, job *types.Job, resume *types.Resume, requestID string) (*types.MatchRecord, error) {
	if err := checkInputs(job, resume); err != nil {
		return nil, err
	}
	if o.cfg.ClearOnReapply {
		if _, err := o.ClearCache(ctx, job.ID, resume.ID); err != nil {
			return nil, err
		}
	}
	return o.EnsureMatch(ctx, job, resume, EnsureOptions{RequestID: requestID})
}

// Simulate scores a pair with the local heuristic without touching the store
func (o *Orchestrator) Simulate(job *types.Job, resume *types.Resume) (*heuristic.Result, error) {
	if err := checkInputs(job, resume); err != nil {
		return nil, err
	}
	return o.simulator.Score(job, profile.ForResume(resume)), nil
}

// IsStale reports whether rec was scored under an older config version than the job's
func IsStale(rec *types.MatchRecord, job *types.Job) bool {
	if rec == nil {
		return true
	}
	if job == nil || job.ScoringConfigVersion == nil {
		return false
	}
	return rec.ScoringConfigVersion < *job.ScoringConfigVersion
}

// compute builds a fresh record for the pair without persisting it
func (o *Orchestrator) compute(ctx context.Context, log *zap.Logger, job *types.Job, resume *types.Resume, requestID string) (*types.MatchRecord, error) {
	key := types.MatchKey{JobID: job.ID, ResumeID: resume.ID}
	effective := profile.ForResume(resume)

	cfg, err := scoringconfig.Resolve(job.ScoringConfig, job.ScoringConfigVersion)
	if err != nil {
		return nil, err
	}

	var rec *types.MatchRecord
	if o.cfg.Simulate || o.scorer == nil {
		rec = o.simulator.Score(job, effective).Record(key)
		rec.ScoringConfigVersion = resolveVersion(nil, job, cfg)
	} else {
		req := scorer.BuildRequest(job, resume.ID, effective, cfg, o.cfg.Trace, requestID)

		start := time.Now()
		raw, err := o.scorer.Score(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			o.metrics.ObserveScorer(o.scorer.Name(), errorKind(err), elapsed)
			log.Warn("scorer call failed", zap.String("scorer", o.scorer.Name()), zap.Duration(logger.FieldDuration, elapsed), zap.Error(err))
			return nil, err
		}
		o.metrics.ObserveScorer(o.scorer.Name(), "ok", elapsed)

		match := normalize.Normalize(raw)
		log.Debug("scorer response normalized", zap.Strings("sources", match.SourceKeys()), zap.Duration(logger.FieldDuration, elapsed))

		rec = match.Record(key)
		rec.ScoringConfigVersion = resolveVersion(match.ScoringConfigVersion, job, cfg)
		rec.Trace = o.traceFor(rec.Trace, requestID, elapsed)
	}

	rec.CandidateID = resume.CandidateID
	return rec, nil
}

// resolveVersion picks the version from the scorer response, then the job stamp,
// then the merged config
func resolveVersion(fromResponse *int, job *types.Job, cfg types.ScoringConfig) int {
	switch {
	case fromResponse != nil:
		return *fromResponse
	case job.ScoringConfigVersion != nil:
		return *job.ScoringConfigVersion
	default:
		return cfg.Version
	}
}

// traceFor keeps trace data only when tracing is on and fills what the scorer left out
func (o *Orchestrator) traceFor(t *types.Trace, requestID string, elapsed time.Duration) *types.Trace {
	if !o.cfg.Trace {
		return nil
	}
	if t == nil {
		t = &types.Trace{}
	}
	if t.RequestID == "" {
		t.RequestID = requestID
	}
	if t.LatencyMS == 0 {
		t.LatencyMS = elapsed.Milliseconds()
	}
	return t
}

// backfillCandidate fills a missing owner on a cache hit. Not a recompute; a
// failure is only logged.
func (o *Orchestrator) backfillCandidate(ctx context.Context, log *zap.Logger, rec *types.MatchRecord, resume *types.Resume) {
	if rec.HasCandidate() || resume.CandidateID == uuid.Nil {
		return
	}
	if err := o.store.BackfillCandidate(ctx, rec.Key(), resume.CandidateID); err != nil {
		log.Warn("candidate backfill failed", zap.Error(err))
		return
	}
	rec.CandidateID = resume.CandidateID
	log.Debug("candidate backfilled", logger.CandidateID(resume.CandidateID))
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, event *events.MatchEvent) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		log.Warn("event publish failed", zap.String("event_type", event.EventType), zap.Error(err))
	}
}

func (o *Orchestrator) fail(span trace.Span, err error, forced bool) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.kind", errorKind(err)))
	o.metrics.ObserveEnsure(metrics.OutcomeError, forced)
}

func checkInputs(job *types.Job, resume *types.Resume) error {
	if job == nil {
		return &NotFoundError{Kind: "job"}
	}
	if resume == nil {
		return &NotFoundError{Kind: "resume"}
	}
	return nil
}
