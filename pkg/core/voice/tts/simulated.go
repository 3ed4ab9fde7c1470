package tts

import (
	"context"

	"github.com/google/uuid"
)

// Simulated is a TTS provider that fabricates an audio handle without
// synthesizing anything. The payload is the prompt text itself so logs
// and tests can see what would have been spoken.
type Simulated struct{}

// NewSimulated creates a simulated provider.
func NewSimulated() *Simulated { return &Simulated{} }

func (s *Simulated) Name() string { return "simulated" }

// Synthesize returns a handle wrapping the text verbatim.
func (s *Simulated) Synthesize(_ context.Context, text string, cfg VoiceConfig) (AudioHandle, error) {
	format := cfg.Format
	if format == "" {
		format = "pcm"
	}
	return AudioHandle{
		ID:     uuid.NewString(),
		Format: format,
		Data:   []byte(text),
	}, nil
}
