// Package llm wraps generative model providers behind a small JSON-in,
// JSON-out interface. Cross-cutting concerns (timeouts, retries, rate
// limiting, logging, hooks) are applied as Middleware.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidJSON is returned when a provider answers with no usable text.
var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// LLMClient is the provider interface used by the content collaborator.
type LLMClient interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var pErr *PermanentError
	return errors.As(err, &pErr)
}
