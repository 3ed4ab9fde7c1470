// Package core holds the shared error taxonomy and control signals used
// across the interview engine.
package core

import (
	"errors"
	"fmt"
)

// Error represents a failure in the interview engine or one of its
// external collaborators.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	wrapped   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrProviderTimeout     ErrorType = "provider_timeout"
	ErrProviderUnavailable ErrorType = "provider_unavailable"
	ErrAnalysisFailure     ErrorType = "analysis_failure"
	ErrGenerationFailure   ErrorType = "generation_failure"
	ErrDepthExceeded       ErrorType = "depth_exceeded"
	ErrPersistenceFailure  ErrorType = "persistence_failure"
	ErrInvalidGuide        ErrorType = "invalid_guide"
	ErrNotFound            ErrorType = "not_found"
	ErrInvalidTransition   ErrorType = "invalid_transition"
)

// IsRetryable reports whether the operation that produced this error may
// be retried with backoff. Depth, guide and transition errors are
// deterministic and never retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrProviderTimeout, ErrProviderUnavailable, ErrPersistenceFailure:
		return true
	default:
		return false
	}
}

// NewProviderTimeout creates a timeout error for an external call.
func NewProviderTimeout(provider string, underlying error) *Error {
	return &Error{
		Type:     ErrProviderTimeout,
		Message:  fmt.Sprintf("%s: call timed out", provider),
		Provider: provider,
		wrapped:  underlying,
	}
}

// NewProviderUnavailable creates an unavailability error for an external call.
func NewProviderUnavailable(provider string, underlying error) *Error {
	return &Error{
		Type:     ErrProviderUnavailable,
		Message:  fmt.Sprintf("%s: %v", provider, underlying),
		Provider: provider,
		wrapped:  underlying,
	}
}

// NewAnalysisFailure creates an analysis failure error.
func NewAnalysisFailure(underlying error) *Error {
	return &Error{
		Type:    ErrAnalysisFailure,
		Message: fmt.Sprintf("response analysis failed: %v", underlying),
		wrapped: underlying,
	}
}

// NewGenerationFailure creates a follow-up generation failure error.
func NewGenerationFailure(underlying error) *Error {
	return &Error{
		Type:    ErrGenerationFailure,
		Message: fmt.Sprintf("follow-up generation failed: %v", underlying),
		wrapped: underlying,
	}
}

// NewDepthExceeded creates an error for a follow-up push past the depth limit.
func NewDepthExceeded(depth, max int) *Error {
	return &Error{
		Type:    ErrDepthExceeded,
		Message: fmt.Sprintf("follow-up depth %d at configured maximum %d", depth, max),
	}
}

// NewPersistenceFailure creates a persistence error.
func NewPersistenceFailure(op string, underlying error) *Error {
	return &Error{
		Type:      ErrPersistenceFailure,
		Message:   fmt.Sprintf("%s: %v", op, underlying),
		Component: "store",
		wrapped:   underlying,
	}
}

// NewInvalidGuide creates a guide validation error.
func NewInvalidGuide(message string) *Error {
	return &Error{Type: ErrInvalidGuide, Message: message}
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// Control signals. These are expected flow-control conditions, not
// failures: callers switch on them instead of aborting.
var (
	// ErrGuideExhausted is returned by advancing past the last question
	// of the last section. It is the normal completion trigger.
	ErrGuideExhausted = errors.New("guide exhausted")

	// ErrBudgetExhausted signals that the current section spent its time
	// budget and must be force-closed.
	ErrBudgetExhausted = errors.New("section budget exhausted")

	// ErrEscalationRequired signals that the quality monitor demands a
	// handoff to human review.
	ErrEscalationRequired = errors.New("escalation required")
)
