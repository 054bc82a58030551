// Package provider implements the LLM inference backend client.
package provider

import (
	"context"
	"fmt"
)

// Backend is the interface the decision pipeline talks to.
type Backend interface {
	// Generate runs a single completion for the given model and prompt.
	Generate(ctx context.Context, model, prompt string) (string, error)
	// Healthy reports whether the inference backend is reachable.
	Healthy(ctx context.Context) bool
}

// BackendError marks an inference call that failed or returned
// malformed output. The stage names which pipeline step was running.
type BackendError struct {
	Stage string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
