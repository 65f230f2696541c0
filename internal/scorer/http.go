package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/schemas"
	schemafiles "github.com/jonathan/resume-matcher/schemas"
)

// DefaultTimeout is the default scorer request timeout
const DefaultTimeout = 30 * time.Second

// DefaultPath is appended to the base URL for scoring requests
const DefaultPath = "/match"

// RequestIDHeader carries the caller-supplied request identifier
const RequestIDHeader = "X-Request-ID"

// maxResponseBytes caps how much of a scorer response is read
const maxResponseBytes = 4 << 20

// HTTPOptions configures an HTTPClient
type HTTPOptions struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// HTTPClient calls an external matcher over HTTP
type HTTPClient struct {
	url     string
	timeout time.Duration
	headers map[string]string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a scorer client for baseURL
func NewHTTPClient(opts HTTPOptions) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("scorer base URL is required")
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &HTTPClient{
		url:     base + path,
		timeout: timeout,
		headers: opts.Headers,
		http:    httpClient,
		logger:  logger.OrNop(opts.Logger).Named("scorer.http"),
	}, nil
}

// Name identifies the client in logs and traces
func (c *HTTPClient) Name() string {
	return "http"
}

// Score posts the request and returns the decoded response object
func (c *HTTPClient) Score(ctx context.Context, req *Request) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal scorer request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create scorer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set(RequestIDHeader, req.RequestID)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err, req.RequestID, c.timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err, req.RequestID, c.timeout)
	}

	c.logger.Debug("scorer response",
		logger.RequestID(req.RequestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration(logger.FieldDuration, time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
			RequestID:  req.RequestID,
		}
	}

	return DecodeResponse(data, req.RequestID)
}

// DecodeResponse parses a scorer body into a JSON object and checks it against the
// response schema. Anything else is a malformed upstream payload.
func DecodeResponse(data []byte, requestID string) (map[string]any, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &UpstreamError{
			StatusCode: http.StatusBadGateway,
			Message:    "malformed scorer response",
			RequestID:  requestID,
			Cause:      err,
		}
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, &UpstreamError{
			StatusCode: http.StatusBadGateway,
			Message:    "malformed scorer response: expected a JSON object",
			RequestID:  requestID,
		}
	}
	if err := schemas.ValidateValue(schemafiles.ScorerResponse, obj); err != nil {
		msg := err.Error()
		var vErr *schemas.ValidationError
		if errors.As(err, &vErr) {
			msg = vErr.Summary()
		}
		return nil, &UpstreamError{
			StatusCode: http.StatusBadGateway,
			Message:    "malformed scorer response: " + msg,
			RequestID:  requestID,
			Cause:      err,
		}
	}
	return obj, nil
}

// errorMessage pulls a human-readable message out of an error body
func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}
	if text := logger.TruncateForLog(string(body), 200); text != "" {
		return text
	}
	return http.StatusText(status)
}
