package decision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/guide"
	"github.com/candorlabs/vox/pkg/core/learning"
	"github.com/candorlabs/vox/pkg/core/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGuide() *guide.CallGuide {
	return &guide.CallGuide{
		ID:                "g1",
		Name:              "onboarding study",
		ResearchObjective: "understand first-week friction",
		MaxDuration:       5 * time.Minute,
		Sections: []guide.Section{
			{
				Name:   "background",
				Budget: 2 * time.Minute,
				Questions: []guide.Question{
					{ID: "q1", Text: "Tell me about your first week.", MaxFollowUps: 2},
					{ID: "q2", Text: "What nearly made you give up?", MaxFollowUps: 2,
						Triggers: []guide.FollowUpTrigger{
							{Type: guide.TriggerVague, Template: "What specifically got in your way that day?"},
						}},
				},
			},
		},
	}
}

func activeState(t *testing.T, g *guide.CallGuide) *session.State {
	t.Helper()
	st := session.New("iv-1", g, 2)
	if err := st.Begin(time.Now()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := st.GrantConsent(); err != nil {
		t.Fatalf("consent: %v", err)
	}
	return st
}

func respWith(a analysis.Analysis) analysis.Response {
	return analysis.Response{QuestionID: "q1", Text: "an answer", Analysis: a}
}

type fakeGenerator struct {
	out  analysis.Generated
	err  error
	seen analysis.Context
}

func (f *fakeGenerator) Name() string { return "fake" }
func (f *fakeGenerator) GenerateFollowUp(_ context.Context, actx analysis.Context) (analysis.Generated, error) {
	f.seen = actx
	return f.out, f.err
}

func newEngine(store *learning.Store, gen analysis.Generator) *Engine {
	if store == nil {
		store = learning.NewStore()
	}
	return NewEngine(store, gen, DefaultConfig(), testLogger())
}

func TestDecide_NoTriggers(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	_, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.8}), st, q)
	if ok {
		t.Fatal("expected no follow-up for a dense, unremarkable answer")
	}
}

func TestDecide_VagueFallsBackToTemplate(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	c, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.1}), st, q)
	if !ok {
		t.Fatal("expected a follow-up for a vague answer")
	}
	if c.Trigger != guide.TriggerVague {
		t.Errorf("trigger = %q, want vague", c.Trigger)
	}
	if c.Source != SourceTemplate {
		t.Errorf("source = %q, want template", c.Source)
	}
	if c.Question == "" {
		t.Error("template candidate has empty question text")
	}
}

func TestDecide_QuestionTemplateOverridesBuiltin(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	if err := st.AdvanceQuestion(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	q, _ := st.CurrentQuestion()

	c, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.1}), st, q)
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if c.Question != "What specifically got in your way that day?" {
		t.Errorf("question = %q, want the guide-configured template", c.Question)
	}
}

func TestDecide_LearnedPatternPreferred(t *testing.T) {
	store := learning.NewStore()
	sig := learning.NewSignature("vague", "background")
	for i := 0; i < 6; i++ {
		store.RecordOutcome(learning.Outcome{
			Signature:    sig,
			Question:     "Can you give me one concrete example?",
			QualityDelta: 0.3,
			At:           time.Now(),
		})
	}
	e := newEngine(store, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	c, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.1}), st, q)
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if c.Source != SourceLearned {
		t.Fatalf("source = %q, want learned", c.Source)
	}
	if c.Question != "Can you give me one concrete example?" {
		t.Errorf("question = %q, want the learned example", c.Question)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		t.Errorf("confidence = %v, want (0, 1]", c.Confidence)
	}
}

func TestDecide_ContradictionOutranksVague(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	a := analysis.Analysis{Density: 0.1, Contradicts: "q0"}
	c, ok := e.Decide(context.Background(), respWith(a), st, q)
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if c.Trigger != guide.TriggerContradiction {
		t.Errorf("trigger = %q, want contradiction to win over vague", c.Trigger)
	}
}

func TestDecide_GeneratorUsedForWeakTemplates(t *testing.T) {
	gen := &fakeGenerator{out: analysis.Generated{Text: "Earlier you said onboarding was smooth. What changed?", Confidence: 0.9}}
	e := newEngine(nil, gen)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	a := analysis.Analysis{Density: 0.7, Contradicts: "q0"}
	c, ok := e.Decide(context.Background(), respWith(a), st, q)
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if c.Source != SourceGenerated {
		t.Fatalf("source = %q, want generated", c.Source)
	}
	if c.Question != gen.out.Text {
		t.Errorf("question = %q, want the generated text", c.Question)
	}
	if gen.seen.Trigger != string(guide.TriggerContradiction) {
		t.Errorf("generator saw trigger %q, want contradiction", gen.seen.Trigger)
	}
	if gen.seen.ResearchObjective != "understand first-week friction" {
		t.Errorf("generator saw objective %q", gen.seen.ResearchObjective)
	}
}

func TestDecide_GeneratorSeesPatternExamples(t *testing.T) {
	store := learning.NewStore()
	sig := learning.NewSignature("contradiction", "background")
	// Two samples: enough to collect examples, not enough to rank as a
	// learned candidate.
	for i := 0; i < 2; i++ {
		store.RecordOutcome(learning.Outcome{
			Signature:    sig,
			Question:     "Which of those two versions is closer to what happened?",
			QualityDelta: 0.3,
			At:           time.Now(),
		})
	}
	gen := &fakeGenerator{out: analysis.Generated{Text: "Walk me through that again?", Confidence: 0.9}}
	e := newEngine(store, gen)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	a := analysis.Analysis{Density: 0.7, Contradicts: "q0"}
	c, ok := e.Decide(context.Background(), respWith(a), st, q)
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if c.Source != SourceGenerated {
		t.Fatalf("source = %q, want generated", c.Source)
	}
	if len(gen.seen.PatternExamples) == 0 ||
		gen.seen.PatternExamples[0] != "Which of those two versions is closer to what happened?" {
		t.Errorf("generator saw examples %v, want the stored pattern's", gen.seen.PatternExamples)
	}
}

func TestDecide_GenerationFailureDegradesToTemplate(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	e := newEngine(nil, gen)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()

	a := analysis.Analysis{Density: 0.7, Contradicts: "q0"}
	c, ok := e.Decide(context.Background(), respWith(a), st, q)
	if !ok {
		t.Fatal("expected a follow-up despite generation failure")
	}
	if c.Source != SourceTemplate {
		t.Errorf("source = %q, want template fallback", c.Source)
	}
	if c.Question == "" {
		t.Error("fallback candidate has empty question text")
	}
}

func TestDecide_DepthLimitBlocksFollowUps(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()
	for i := 0; i < 2; i++ {
		if err := st.PushFollowUp(session.PendingFollowUp{Question: "probe", ParentQuestionID: q.ID}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	_, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.1}), st, q)
	if ok {
		t.Fatal("expected no follow-up at max depth")
	}
}

func TestDecide_ExhaustedSectionBlocksFollowUps(t *testing.T) {
	e := newEngine(nil, nil)
	st := activeState(t, testGuide())
	q, _ := st.CurrentQuestion()
	if err := st.Tick(2 * time.Minute); err != nil {
		t.Fatalf("tick: %v", err)
	}

	_, ok := e.Decide(context.Background(), respWith(analysis.Analysis{Density: 0.1}), st, q)
	if ok {
		t.Fatal("expected no follow-up once the section budget is spent")
	}
}

func TestDecide_EmotionalAndHighValueTriggers(t *testing.T) {
	tests := []struct {
		name string
		a    analysis.Analysis
		want guide.TriggerType
	}{
		{"emotion score", analysis.Analysis{Density: 0.6, EmotionScore: 0.8}, guide.TriggerEmotional},
		{"emotion signal", analysis.Analysis{Density: 0.6, Signals: []analysis.Signal{analysis.SignalEmotional}}, guide.TriggerEmotional},
		{"high value topic", analysis.Analysis{Density: 0.6, TopicRelevance: 0.9}, guide.TriggerHighValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(nil, nil)
			st := activeState(t, testGuide())
			q, _ := st.CurrentQuestion()
			c, ok := e.Decide(context.Background(), respWith(tt.a), st, q)
			if !ok {
				t.Fatal("expected a follow-up")
			}
			if c.Trigger != tt.want {
				t.Errorf("trigger = %q, want %q", c.Trigger, tt.want)
			}
		})
	}
}
