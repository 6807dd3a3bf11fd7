package llm

import (
	"context"
	"fmt"

	"stockstudio/internal/meta"
)

// Usage contains token usage and cost information for one generation call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Result contains the generated metadata record and usage information.
type Result struct {
	Record *meta.Record
	Usage  Usage
}

// Generator produces stock metadata for a single image. Implementations are
// stateless across calls and perform exactly one remote round trip per call;
// retrying is the caller's decision.
type Generator interface {
	Generate(ctx context.Context, imageData []byte, mimeType string) (*Result, error)
}

// GenerationError is returned when a generation attempt fails: the remote
// call errored, returned no usable text, or returned text that does not
// match the expected schema.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metadata generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("metadata generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func generationError(reason string, err error) *GenerationError {
	return &GenerationError{Reason: reason, Err: err}
}
