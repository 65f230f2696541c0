package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/cache"
	"github.com/jonathan/resume-matcher/internal/config"
	"github.com/jonathan/resume-matcher/internal/db"
	"github.com/jonathan/resume-matcher/internal/events"
	"github.com/jonathan/resume-matcher/internal/heuristic"
	"github.com/jonathan/resume-matcher/internal/llm"
	"github.com/jonathan/resume-matcher/internal/matching"
	"github.com/jonathan/resume-matcher/internal/memstore"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/ranking"
	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/types"
)

// backend is what both the PostgreSQL store and the in-memory store provide
type backend interface {
	matching.Store
	ranking.MatchLister
	ranking.Directory
	UpsertJob(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	UpsertResume(ctx context.Context, resume *types.Resume) error
	UpsertApplication(ctx context.Context, app *types.Application) (*types.Application, error)
}

var (
	_ backend = (*db.DB)(nil)
	_ backend = (*memstore.Store)(nil)
)

// app holds the wired components for one command invocation
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	store      backend
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	matcher    *matching.Orchestrator
	aggregator *ranking.Aggregator
	closers    []func()
}

// newApp wires storage, cache, events, metrics and the scorer from cfg.
// Without a database URL the in-memory store is used.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(cfg.Metrics.Namespace, a.registry)
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.store = database
		a.closers = append(a.closers, database.Close)
	} else {
		log.Warn("no database configured, using in-memory store")
		a.store = memstore.New()
	}

	var matchStore matching.Store = a.store
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		matchStore = cache.NewStore(a.store, client, cfg.Redis.TTL, log, a.metrics)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewProducer(events.ProducerConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, log, a.metrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = producer.Close() })
		publisher = producer
	}

	client, closeScorer, err := newScorer(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeScorer != nil {
		a.closers = append(a.closers, closeScorer)
	}

	a.matcher = matching.New(matching.Config{
		Simulate:       cfg.Matching.Simulate,
		Trace:          cfg.Matching.Trace,
		ClearOnReapply: cfg.Matching.ClearOnReapply,
	}, matching.Deps{
		Store:     matchStore,
		Scorer:    client,
		Simulator: heuristic.New(cfg.Heuristic),
		Publisher: publisher,
		Metrics:   a.metrics,
		Logger:    log,
	})

	a.aggregator = ranking.New(ranking.Config{
		RefreshBatchSize:   cfg.Ranking.RefreshBatchSize,
		RefreshConcurrency: cfg.Ranking.RefreshConcurrency,
		DefaultLimit:       cfg.Ranking.DefaultLimit,
	}, ranking.Deps{
		Matches:   a.store,
		Directory: a.store,
		Ensurer:   a.matcher,
		Metrics:   a.metrics,
		Logger:    log,
	})

	return a, nil
}

// Close releases resources in reverse order and writes the metrics textfile if configured
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	if a.registry != nil && a.cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			a.log.Warn("failed to write metrics textfile", zap.String("path", a.cfg.Metrics.Textfile), zap.Error(err))
		}
	}
}

// newScorer builds the configured scorer client. A nil client means the
// orchestrator scores with the local heuristic.
func newScorer(ctx context.Context, cfg *config.Config, log *zap.Logger) (scorer.Client, func(), error) {
	switch cfg.Scorer.Provider {
	case config.ScorerHeuristic:
		return nil, nil, nil
	case config.ScorerLLM:
		apiKey := cfg.Scorer.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, nil, fmt.Errorf("API key required: set scorer.api_key or GEMINI_API_KEY environment variable")
		}
		llmCfg := llm.DefaultConfig()
		if cfg.Scorer.Model != "" {
			llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.Scorer.Model)
		}
		client, err := llm.NewClient(ctx, llmCfg, apiKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return scorer.NewLLMScorer(client, llm.TierStandard, cfg.Scorer.Timeout, log), func() { _ = client.Close() }, nil
	default:
		if cfg.Matching.Simulate && cfg.Scorer.URL == "" {
			return nil, nil, nil
		}
		client, err := scorer.NewHTTPClient(scorer.HTTPOptions{
			BaseURL: cfg.Scorer.URL,
			Path:    cfg.Scorer.Path,
			Timeout: cfg.Scorer.Timeout,
			Headers: cfg.Scorer.Headers,
			Logger:  log,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}
}

// resolveJob reads a job from a JSON file (storing it) or loads it by id
func (a *app) resolveJob(ctx context.Context, path, id string) (*types.Job, error) {
	if path != "" {
		var job types.Job
		if err := readJSONFile(path, &job); err != nil {
			return nil, err
		}
		if job.ID == uuid.Nil {
			return nil, fmt.Errorf("job file %s has no id", path)
		}
		if err := a.store.UpsertJob(ctx, &job); err != nil {
			return nil, err
		}
		return &job, nil
	}

	jobID, err := parseID("job-id", id)
	if err != nil {
		return nil, err
	}
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &matching.NotFoundError{Kind: "job", ID: jobID}
	}
	return job, nil
}

// resolveResume reads a resume from a JSON file (storing it) or loads it by id
func (a *app) resolveResume(ctx context.Context, path, id string) (*types.Resume, error) {
	if path != "" {
		var resume types.Resume
		if err := readJSONFile(path, &resume); err != nil {
			return nil, err
		}
		if resume.ID == uuid.Nil {
			return nil, fmt.Errorf("resume file %s has no id", path)
		}
		if err := a.store.UpsertResume(ctx, &resume); err != nil {
			return nil, err
		}
		return &resume, nil
	}

	resumeID, err := parseID("resume-id", id)
	if err != nil {
		return nil, err
	}
	resume, err := a.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if resume == nil {
		return nil, &matching.NotFoundError{Kind: "resume", ID: resumeID}
	}
	return resume, nil
}

func parseID(flag, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", flag)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return id, nil
}
