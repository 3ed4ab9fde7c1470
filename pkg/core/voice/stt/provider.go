// Package stt defines the speech-to-text capture contract consumed by
// the interview orchestrator.
package stt

import (
	"context"
	"time"
)

// Capture is the result of listening for one respondent turn.
type Capture struct {
	Text       string
	Confidence float64 // [0, 1] transcription confidence
	Duration   time.Duration
	// Unintelligible is set when audio was received but could not be
	// transcribed. Text is empty in that case.
	Unintelligible bool
}

// Provider is the interface for speech-to-text services. A call that
// exceeds the timeout returns a *core.Error with type provider_timeout;
// the orchestrator retries once and then records the turn as unanswered.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Capture listens on the session's audio channel until the
	// respondent finishes speaking or the timeout elapses.
	Capture(ctx context.Context, sessionID string, timeout time.Duration) (Capture, error)
}
