// Package gateway dispatches prompts to a language-model inference backend and
// implements the fallback chain across a priority list of models.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrModelUnavailable is the terminal gateway failure: every model in the
// fallback chain failed to respond within its timeout. It is the single point
// where a caller learns that no raw text could be produced.
var ErrModelUnavailable = errors.New("no model produced a response")

// Generator produces raw model output for a prompt, trying the provided models
// in priority order. The first attempt yielding any non-error response wins,
// even if its content later fails to parse.
type Generator interface {
	GenerateWithFallback(ctx context.Context, prompt string, models []string) (*Result, error)
}

// Result carries the raw response text and the model that produced it.
type Result struct {
	Text  string
	Model string
}

// Outcome tags a single fallback attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeMalformed   Outcome = "malformed"
)

// Attempt records what happened for one model in the chain.
type Attempt struct {
	Model   string
	Outcome Outcome
	Err     error
}

// UnavailableError aggregates the per-model attempts behind ErrModelUnavailable
// so callers can report which models were tried and why each failed.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Model, a.Outcome))
	}
	if len(parts) == 0 {
		return ErrModelUnavailable.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrModelUnavailable.Error(), strings.Join(parts, ", "))
}

func (e *UnavailableError) Unwrap() error { return ErrModelUnavailable }
