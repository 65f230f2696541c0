package scoringconfig

import "fmt"

// Code classifies a ValidationError
type Code string

// Validation error codes
const (
	CodeInvalidType       Code = "InvalidType"
	CodeOutOfRange        Code = "OutOfRange"
	CodeWeightSumMismatch Code = "WeightSumMismatch"
)

// ValidationError represents a rejected scoring configuration. It is never retried.
type ValidationError struct {
	Code    Code
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("scoring config %s in %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("scoring config %s: %s", e.Code, e.Message)
}
