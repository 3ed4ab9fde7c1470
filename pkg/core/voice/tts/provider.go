// Package tts defines the text-to-speech contract consumed by the
// interview orchestrator.
package tts

import "context"

// VoiceConfig selects voice characteristics for synthesis.
type VoiceConfig struct {
	Voice   string  // voice identifier
	Speed   float64 // speed multiplier (0.6-1.5)
	Volume  float64 // volume multiplier (0.5-2.0)
	Emotion string  // emotion hint
	Format  string  // output format: "wav", "mp3", or "pcm"
}

// AudioHandle references synthesized audio that the telephony layer can
// play back. The core never inspects the payload.
type AudioHandle struct {
	ID     string
	Format string
	Data   []byte
}

// Provider is the interface for text-to-speech services. Failures map to
// *core.Error with type provider_unavailable or provider_timeout.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, cfg VoiceConfig) (AudioHandle, error)
}
