// Package learning accumulates cross-session follow-up outcomes into
// trigger→success statistics the decision engine consults. One Store is
// shared by all concurrent sessions.
package learning

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Signature is the normalized key identifying a follow-up trigger
// condition in context.
type Signature string

// NewSignature builds a signature from a trigger type and a context
// bucket (typically the section name).
func NewSignature(trigger, context string) Signature {
	trigger = strings.ToLower(strings.TrimSpace(trigger))
	context = strings.ToLower(strings.TrimSpace(context))
	if context == "" {
		return Signature(trigger)
	}
	return Signature(trigger + "|" + context)
}

// Pattern is the learned statistics for one trigger signature. Mutated
// only by the store; callers receive copies.
type Pattern struct {
	Signature   Signature `json:"signature"`
	Samples     int       `json:"samples"`
	Successes   int       `json:"successes"`
	Examples    []string  `json:"examples,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// SuccessRate returns successes/samples, 0 for an empty pattern.
func (p Pattern) SuccessRate() float64 {
	if p.Samples == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Samples)
}

// confidenceSaturation is the sample count at which confidence reaches
// its cap before recency discounting.
const confidenceSaturation = 20

// recencyHalfScale controls how fast stale evidence decays.
const recencyHalfScale = 30 * 24 * time.Hour

// Confidence is monotonically increasing in sample count, capped at 1,
// and discounted exponentially by the age of the latest evidence.
func (p Pattern) Confidence(now time.Time) float64 {
	base := float64(p.Samples) / confidenceSaturation
	if base > 1 {
		base = 1
	}
	age := now.Sub(p.LastUpdated)
	if age < 0 {
		age = 0
	}
	return base * math.Exp(-float64(age)/float64(recencyHalfScale))
}

// Outcome is one follow-up result recorded after a completed interview.
type Outcome struct {
	Signature Signature
	Question  string
	// QualityDelta is the quality of the answer that followed the probe
	// minus the quality of the answer that triggered it.
	QualityDelta float64
	At           time.Time
}

const (
	// DefaultMinSamples gates pattern eligibility.
	DefaultMinSamples = 5
	// DefaultMinSuccessRate gates pattern eligibility.
	DefaultMinSuccessRate = 0.6
	// DefaultImprovementThreshold is the quality delta above which a
	// follow-up counts as a success.
	DefaultImprovementThreshold = 0.1

	maxExamples = 3
)

// Store holds learned patterns. Safe for concurrent use by any number of
// sessions; eligibility reads take a read lock only.
type Store struct {
	mu       sync.RWMutex
	patterns map[Signature]*Pattern

	minSamples           int
	minSuccessRate       float64
	improvementThreshold float64
	logger               *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMinSamples overrides the eligibility sample floor.
func WithMinSamples(n int) Option { return func(s *Store) { s.minSamples = n } }

// WithMinSuccessRate overrides the eligibility success-rate floor.
func WithMinSuccessRate(r float64) Option { return func(s *Store) { s.minSuccessRate = r } }

// WithImprovementThreshold overrides the success quality-delta threshold.
func WithImprovementThreshold(d float64) Option {
	return func(s *Store) { s.improvementThreshold = d }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// NewStore creates an empty learning store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		patterns:             make(map[Signature]*Pattern),
		minSamples:           DefaultMinSamples,
		minSuccessRate:       DefaultMinSuccessRate,
		improvementThreshold: DefaultImprovementThreshold,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordOutcome folds one follow-up outcome into its pattern. Patterns
// are created lazily on first observation and never deleted.
func (s *Store) RecordOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(o)
}

// RecordOutcomes applies a session's outcome batch atomically: a reader
// never observes a partially applied session.
func (s *Store) RecordOutcomes(outcomes []Outcome) {
	if len(outcomes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outcomes {
		s.record(o)
	}
	s.logger.Debug("recorded follow-up outcomes", "count", len(outcomes))
}

func (s *Store) record(o Outcome) {
	p, ok := s.patterns[o.Signature]
	if !ok {
		p = &Pattern{Signature: o.Signature}
		s.patterns[o.Signature] = p
	}
	p.Samples++
	if o.QualityDelta > s.improvementThreshold {
		p.Successes++
		if o.Question != "" {
			p.Examples = mergeExamples(p.Examples, []string{o.Question})
		}
	}
	if o.At.After(p.LastUpdated) {
		p.LastUpdated = o.At
	}
}

// Eligible returns the pattern for a signature when it has enough
// evidence: sample count at or above the minimum and success rate at or
// above the floor. Otherwise it returns false and the decision engine
// falls back to templates or generation.
func (s *Store) Eligible(sig Signature) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[sig]
	if !ok {
		return Pattern{}, false
	}
	if p.Samples < s.minSamples || p.SuccessRate() < s.minSuccessRate {
		return Pattern{}, false
	}
	return clone(*p), true
}

// Pattern returns the raw pattern regardless of eligibility.
func (s *Store) Pattern(sig Signature) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[sig]
	if !ok {
		return Pattern{}, false
	}
	return clone(*p), true
}

// Len returns the number of tracked patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

func clone(p Pattern) Pattern {
	ex := make([]string, len(p.Examples))
	copy(ex, p.Examples)
	p.Examples = ex
	return p
}

// mergeExamples unions two example lists deterministically: sorted,
// de-duplicated, capped.
func mergeExamples(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, lst := range [][]string{a, b} {
		for _, e := range lst {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Strings(out)
	if len(out) > maxExamples {
		out = out[:maxExamples]
	}
	return out
}
