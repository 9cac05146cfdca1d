package provider

import "fmt"

// EmbeddingError reports a failed embedding call. Context assembly treats
// it as a degradation; the memory writer treats it as a skip.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed or malformed generative-model call. It
// is surfaced to the caller as a user-visible failure for the turn; no
// retry happens at this layer.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
