package matching

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/resume-matcher/internal/scorer"
	"github.com/jonathan/resume-matcher/internal/scoringconfig"
)

// NotFoundError indicates a job or resume the caller referenced does not exist
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// HTTPStatus returns the status a caller should answer with for an engine error.
// Server-side scorer failures become 503; client-side ones pass their status through.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		validationErr *scoringconfig.ValidationError
		notFoundErr   *NotFoundError
		timeoutErr    *scorer.TimeoutError
		upstreamErr   *scorer.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &timeoutErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &upstreamErr):
		if upstreamErr.ServerSide() || upstreamErr.StatusCode < http.StatusBadRequest {
			return http.StatusServiceUnavailable
		}
		return upstreamErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether a caller may retry the same call later
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if scorer.IsTimeout(err) {
		return true
	}
	var upstreamErr *scorer.UpstreamError
	return errors.As(err, &upstreamErr) && upstreamErr.ServerSide()
}

// errorKind labels an error for metrics and spans
func errorKind(err error) string {
	var (
		validationErr *scoringconfig.ValidationError
		upstreamErr   *scorer.UpstreamError
	)
	switch {
	case scorer.IsTimeout(err):
		return "timeout"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return "internal"
	}
}
