package llm

import "fmt"

// BlockedError means the provider refused the prompt or withheld the answer
type BlockedError struct {
	Model  string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("model %s blocked the request (%s)", e.Model, e.Reason)
}

// TruncatedError means the answer hit the output token limit
type TruncatedError struct {
	Model string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("model %s answer truncated at the output token limit", e.Model)
}

// EmptyAnswerError means the model returned no usable text
type EmptyAnswerError struct {
	Model string
}

func (e *EmptyAnswerError) Error() string {
	return fmt.Sprintf("model %s returned no text", e.Model)
}
