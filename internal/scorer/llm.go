package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/llm"
	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/prompts"
)

// LLMScorer asks a language model to score a match. The model's JSON answer goes
// through the same decoding and schema checks as an HTTP scorer response.
type LLMScorer struct {
	client  llm.Client
	tier    llm.ModelTier
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMScorer creates a scorer backed by client
func NewLLMScorer(client llm.Client, tier llm.ModelTier, timeout time.Duration, log *zap.Logger) *LLMScorer {
	if tier == "" {
		tier = llm.TierStandard
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LLMScorer{
		client:  client,
		tier:    tier,
		timeout: timeout,
		logger:  logger.OrNop(log).Named("scorer.llm"),
	}
}

// Name identifies the client in logs and traces
func (s *LLMScorer) Name() string {
	return "llm:" + s.client.GetModel(s.tier)
}

// Score renders the matching prompt and decodes the model's JSON answer
func (s *LLMScorer) Score(ctx context.Context, req *Request) (map[string]any, error) {
	prompt, err := buildMatchPrompt(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return nil, s.classify(ctx, err, req.RequestID)
	}

	latency := time.Since(start)
	s.logger.Debug("llm scorer response",
		logger.RequestID(req.RequestID),
		zap.String("model", s.client.GetModel(s.tier)),
		zap.Duration(logger.FieldDuration, latency),
		zap.String("preview", logger.TruncateForLog(raw, 200)),
	)

	payload, err := DecodeResponse([]byte(llm.CleanJSONBlock(raw)), req.RequestID)
	if err != nil {
		return nil, err
	}

	if req.Trace {
		if _, ok := payload["trace"]; !ok {
			payload["trace"] = map[string]any{
				"request_id": req.RequestID,
				"model":      s.client.GetModel(s.tier),
				"latency_ms": latency.Milliseconds(),
			}
		}
	}
	return payload, nil
}

// classify maps a generation failure onto the scorer error taxonomy. A blocked
// prompt will be blocked again, so it is reported as a client-side failure.
func (s *LLMScorer) classify(ctx context.Context, err error, requestID string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{RequestID: requestID, Timeout: s.timeout, Cause: err}
	}
	var blocked *llm.BlockedError
	if errors.As(err, &blocked) {
		return &UpstreamError{
			StatusCode: http.StatusUnprocessableEntity,
			Message:    "LLM refused to score the pair",
			RequestID:  requestID,
			Cause:      err,
		}
	}
	return &UpstreamError{
		StatusCode: http.StatusBadGateway,
		Message:    "LLM generation failed",
		RequestID:  requestID,
		Cause:      err,
	}
}

func buildMatchPrompt(req *Request) (string, error) {
	cfg := req.ScoringConfig
	weights, err := json.Marshal(cfg.Weights)
	if err != nil {
		return "", fmt.Errorf("marshal weights: %w", err)
	}

	minYears := "Not specified"
	if cfg.Constraints.MinYears != nil {
		minYears = fmt.Sprintf("%g", *cfg.Constraints.MinYears)
	}

	return prompts.Render("matching.json", "score-match", map[string]string{
		"JobDescription":   orNotSpecified(req.JobDescription),
		"JobSkills":        orNotSpecified(strings.Join(req.JobSkills, ", ")),
		"CandidateSkills":  orNotSpecified(strings.Join(req.CandidateSkills, ", ")),
		"CandidateSummary": orNotSpecified(req.CandidateSummary),
		"ResumeText":       orNotSpecified(req.ResumeText),
		"Weights":          string(weights),
		"MustHave":         orNotSpecified(strings.Join(cfg.Constraints.MustHaveSkills, ", ")),
		"NiceToHave":       orNotSpecified(strings.Join(cfg.Constraints.NiceToHaveSkills, ", ")),
		"MinYears":         minYears,
	})
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
