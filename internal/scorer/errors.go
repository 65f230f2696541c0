package scorer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// TimeoutError means the scorer did not answer in time or the connection was
// aborted. Callers treat it as retryable.
type TimeoutError struct {
	RequestID string
	Timeout   time.Duration
	Aborted   bool
	Cause     error
}

func (e *TimeoutError) Error() string {
	what := "timed out"
	if e.Aborted {
		what = "connection aborted"
	} else if e.Timeout > 0 {
		what = fmt.Sprintf("timed out after %s", e.Timeout)
	}
	if e.RequestID != "" {
		what += fmt.Sprintf(" (request %s)", e.RequestID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("scorer %s: %v", what, e.Cause)
	}
	return fmt.Sprintf("scorer %s", what)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// UpstreamError means the scorer answered with an error status or an unusable body.
// Message is passed through from the scorer where it gave one.
type UpstreamError struct {
	StatusCode int
	Message    string
	RequestID  string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scorer error %d: %s: %v", e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("scorer error %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// ServerSide reports whether the failure was on the scorer's side (5xx)
func (e *UpstreamError) ServerSide() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsTimeout reports whether err is or wraps a *TimeoutError
func IsTimeout(err error) bool {
	var tErr *TimeoutError
	return errors.As(err, &tErr)
}

// classifyTransportError maps a failed round trip onto the error taxonomy
func classifyTransportError(ctx context.Context, err error, requestID string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{RequestID: requestID, Timeout: timeout, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{RequestID: requestID, Timeout: timeout, Cause: err}
	}

	if errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.ECONNRESET) {
		return &TimeoutError{RequestID: requestID, Aborted: true, Cause: err}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("scorer request canceled: %w", err)
	}

	return &UpstreamError{
		StatusCode: http.StatusBadGateway,
		Message:    "scorer unreachable",
		RequestID:  requestID,
		Cause:      err,
	}
}
