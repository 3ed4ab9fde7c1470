package stt

import (
	"context"
	"sync"
	"time"
)

// Simulated is an STT provider that returns canned transcriptions after
// a short delay. It lets the full interview loop run without a speech
// backend or live audio.
type Simulated struct {
	delay      time.Duration
	confidence float64

	mu    sync.Mutex
	lines []string
	next  int
}

// NewSimulated creates a simulated provider. When lines run out, capture
// repeats the last one; with no lines at all a generic answer is used.
func NewSimulated(delay time.Duration, lines ...string) *Simulated {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Simulated{delay: delay, confidence: 0.95, lines: lines}
}

func (s *Simulated) Name() string { return "simulated" }

// Capture waits the configured delay and returns the next canned line.
func (s *Simulated) Capture(ctx context.Context, _ string, timeout time.Duration) (Capture, error) {
	delay := s.delay
	if timeout > 0 && delay > timeout {
		delay = timeout
	}
	select {
	case <-ctx.Done():
		return Capture{}, ctx.Err()
	case <-time.After(delay):
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	text := "I don't have much to add on that."
	if len(s.lines) > 0 {
		i := s.next
		if i >= len(s.lines) {
			i = len(s.lines) - 1
		}
		text = s.lines[i]
		s.next++
	}
	return Capture{Text: text, Confidence: s.confidence, Duration: delay}, nil
}
