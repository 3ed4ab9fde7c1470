// Package analysis defines the structured view of a respondent answer and
// the contracts for the external collaborators that produce it.
package analysis

import (
	"context"
	"time"
)

// Signal is a qualitative marker detected in a response.
type Signal string

const (
	SignalVague         Signal = "vague"
	SignalDetailed      Signal = "detailed"
	SignalContradiction Signal = "contradiction"
	SignalEmotional     Signal = "emotional"
	SignalEnthusiasm    Signal = "enthusiasm"
	SignalHesitation    Signal = "hesitation"
)

// Analysis is the semantic breakdown of one response. Values arrive
// already computed from the external analyzer.
type Analysis struct {
	Sentiment      float64  `json:"sentiment"`       // [-1, 1]
	Density        float64  `json:"density"`         // [0, 1], information density
	Signals        []Signal `json:"signals,omitempty"`
	Entities       []string `json:"entities,omitempty"`
	Themes         []string `json:"themes,omitempty"`
	TopicRelevance float64  `json:"topic_relevance"` // [0, 1], relevance to the research objective
	EmotionScore   float64  `json:"emotion_score"`   // [0, 1], intensity of emotional content
	Confidence     float64  `json:"confidence"`      // [0, 1], analyzer self-confidence
	Contradicts    string   `json:"contradicts,omitempty"` // question id of a conflicting earlier answer
}

// Has reports whether the analysis carries the given signal.
func (a Analysis) Has(sig Signal) bool {
	for _, s := range a.Signals {
		if s == sig {
			return true
		}
	}
	return false
}

// Empty is the degraded analysis used when the analyzer fails: no
// signals detected, neutral sentiment, middling density.
func Empty() Analysis {
	return Analysis{Sentiment: 0, Density: 0.5, Confidence: 0}
}

// Quality folds an analysis into a single [0,1] response-quality score.
// It is the basis for follow-up outcome deltas.
func (a Analysis) Quality() float64 {
	q := 0.5*a.Density + 0.3*a.TopicRelevance + 0.2*(a.Sentiment+1)/2
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// Response is one recorded answer, immutable once created.
type Response struct {
	QuestionID string
	Question   string
	Text       string
	Analysis   Analysis
	IsFollowUp bool
	// ParentQuestionID links a follow-up answer to the scripted question
	// that spawned it.
	ParentQuestionID string
	STTConfidence    float64
	AskedAt          time.Time
	AnsweredAt       time.Time
	Unintelligible   bool
}

// Context carries what an analyzer or generator may see about the
// session so far.
type Context struct {
	ResearchObjective string
	Question          string
	QuestionID        string
	// History holds prior responses, oldest first. Implementations may
	// truncate; the engine passes the full ordered history.
	History []Response
	// Trigger describes why a follow-up is wanted (generator only).
	Trigger string
	// PatternExamples seeds generation with question texts from a learned
	// pattern (generator only).
	PatternExamples []string
	TimeRemaining   time.Duration
}

// Analyzer produces an Analysis for a response. Implementations live in
// pkg/core/providers; a failed call is reported as *core.Error with type
// analysis_failure and the caller degrades to Empty().
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, text string, actx Context) (Analysis, error)
}

// Generated is a freshly produced follow-up question.
type Generated struct {
	Text       string
	Confidence float64
}

// Generator produces novel follow-up questions when neither a learned
// pattern nor a template applies.
type Generator interface {
	Name() string
	GenerateFollowUp(ctx context.Context, actx Context) (Generated, error)
}
