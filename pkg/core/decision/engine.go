// Package decision chooses whether to probe a response with a follow-up
// and which probe to use. Deciding is pure: the engine reads the learning
// store and may consult the external generator, but all state mutation
// stays with the orchestrator.
package decision

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/guide"
	"github.com/candorlabs/vox/pkg/core/learning"
	"github.com/candorlabs/vox/pkg/core/session"
)

// Source tags where a candidate's question text came from.
type Source string

const (
	SourceLearned   Source = "learned"
	SourceTemplate  Source = "template"
	SourceGenerated Source = "generated"
)

// Candidate is one proposed follow-up, produced and consumed within a
// single decision call.
type Candidate struct {
	Trigger    guide.TriggerType
	Question   string
	Priority   float64
	Confidence float64
	Source     Source
	Signature  learning.Signature
}

// Config carries the trigger thresholds.
type Config struct {
	// VaguenessThreshold: densities below it fire the vague trigger.
	VaguenessThreshold float64
	// EmotionThreshold: emotion scores above it fire the emotional trigger.
	EmotionThreshold float64
	// TopicRelevanceThreshold: relevance above it fires high_value_topic.
	TopicRelevanceThreshold float64
	// MinConfidence: candidates below it are regenerated via the LLM.
	MinConfidence float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		VaguenessThreshold:      0.3,
		EmotionThreshold:        0.6,
		TopicRelevanceThreshold: 0.7,
		MinConfidence:           0.4,
	}
}

// Engine is the follow-up decision engine. One instance serves all
// sessions; it holds no per-session state.
type Engine struct {
	store  *learning.Store
	gen    analysis.Generator
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a decision engine backed by a learning store and a
// generator for novel probes. gen may be nil, in which case low-confidence
// candidates fall back to templates.
func NewEngine(store *learning.Store, gen analysis.Generator, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, gen: gen, cfg: cfg, logger: logger, now: time.Now}
}

// Decide returns the single highest-ranked follow-up candidate for the
// response, or ok=false to proceed with the script. It refuses to probe
// when the question's follow-up depth is already at its maximum or the
// section budget is spent.
func (e *Engine) Decide(ctx context.Context, resp analysis.Response, st *session.State, q guide.Question) (Candidate, bool) {
	maxDepth := st.MaxDepth()
	if q.MaxFollowUps > 0 && q.MaxFollowUps < maxDepth {
		maxDepth = q.MaxFollowUps
	}
	if st.Depth() >= maxDepth {
		return Candidate{}, false
	}
	if st.Scheduler().SectionExhausted(st.Section()) {
		return Candidate{}, false
	}

	triggers := e.firingTriggers(resp.Analysis)
	if len(triggers) == 0 {
		return Candidate{}, false
	}

	section := st.Guide.Sections[st.Section()].Name
	candidates := make([]Candidate, 0, len(triggers))
	for _, tr := range triggers {
		candidates = append(candidates, e.assemble(ctx, tr, q, section, resp, st))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	best := candidates[0]
	e.logger.Debug("follow-up selected",
		"trigger", best.Trigger, "source", best.Source, "priority", best.Priority)
	return best, true
}

// firingTriggers evaluates each trigger rule independently; several may
// fire for one response.
func (e *Engine) firingTriggers(a analysis.Analysis) []guide.TriggerType {
	var out []guide.TriggerType
	if a.Density < e.cfg.VaguenessThreshold || a.Has(analysis.SignalVague) {
		out = append(out, guide.TriggerVague)
	}
	if a.Has(analysis.SignalContradiction) || a.Contradicts != "" {
		out = append(out, guide.TriggerContradiction)
	}
	if a.EmotionScore > e.cfg.EmotionThreshold || a.Has(analysis.SignalEmotional) {
		out = append(out, guide.TriggerEmotional)
	}
	if a.TopicRelevance > e.cfg.TopicRelevanceThreshold {
		out = append(out, guide.TriggerHighValue)
	}
	return out
}

// assemble builds the candidate for one firing trigger: a learned pattern
// when the store has eligible evidence, else a template, else a freshly
// generated question from the LLM collaborator.
func (e *Engine) assemble(ctx context.Context, tr guide.TriggerType, q guide.Question, section string, resp analysis.Response, st *session.State) Candidate {
	sig := learning.NewSignature(string(tr), section)

	if pattern, ok := e.store.Eligible(sig); ok && len(pattern.Examples) > 0 {
		return e.ranked(Candidate{
			Trigger:    tr,
			Question:   pattern.Examples[0],
			Confidence: pattern.Confidence(e.now()),
			Source:     SourceLearned,
			Signature:  sig,
		})
	}

	text, conf := templateFor(tr, q)
	if conf >= e.cfg.MinConfidence || e.gen == nil {
		return e.ranked(Candidate{
			Trigger:    tr,
			Question:   text,
			Confidence: conf,
			Source:     SourceTemplate,
			Signature:  sig,
		})
	}

	// Patterns too thin to rank as candidates still carry example
	// questions worth showing the generator.
	var examples []string
	if p, ok := e.store.Pattern(sig); ok {
		examples = p.Examples
	}
	gen, err := e.gen.GenerateFollowUp(ctx, analysis.Context{
		ResearchObjective: st.Guide.ResearchObjective,
		Question:          q.Text,
		QuestionID:        q.ID,
		History:           st.History(),
		Trigger:           string(tr),
		PatternExamples:   examples,
		TimeRemaining:     st.Scheduler().Remaining(),
	})
	if err != nil || gen.Text == "" {
		// Generation degrades to the weak template rather than dropping
		// the trigger.
		e.logger.Warn("follow-up generation failed, using template", "trigger", tr, "err", err)
		return e.ranked(Candidate{
			Trigger: tr, Question: text, Confidence: conf,
			Source: SourceTemplate, Signature: sig,
		})
	}
	return e.ranked(Candidate{
		Trigger:    tr,
		Question:   gen.Text,
		Confidence: gen.Confidence,
		Source:     SourceGenerated,
		Signature:  sig,
	})
}

// ranked computes the candidate's priority: severity dominates, then
// source (learned patterns carry historical evidence over templates over
// fresh generations), then confidence breaks ties.
func (e *Engine) ranked(c Candidate) Candidate {
	c.Priority = severity(c.Trigger)*10 + sourceRank(c.Source) + c.Confidence
	return c
}

func severity(tr guide.TriggerType) float64 {
	switch tr {
	case guide.TriggerContradiction:
		return 3
	case guide.TriggerEmotional, guide.TriggerHighValue:
		return 2
	default: // vague
		return 1
	}
}

func sourceRank(s Source) float64 {
	switch s {
	case SourceLearned:
		return 2
	case SourceTemplate:
		return 1
	default:
		return 0
	}
}
