package guide

import (
	"strings"
	"testing"
	"time"

	"github.com/candorlabs/vox/pkg/core"
)

func testGuide() *CallGuide {
	return &CallGuide{
		ID:   "g1",
		Name: "Product feedback",
		Sections: []Section{
			{
				Name:   "Background",
				Budget: 2 * time.Minute,
				Questions: []Question{
					{ID: "q1", Text: "Tell me about your role.", MaxFollowUps: 2},
					{ID: "q2", Text: "How do you use the product?", MaxFollowUps: 2},
				},
			},
			{
				Name:   "Pain points",
				Budget: 3 * time.Minute,
				Questions: []Question{
					{ID: "q3", Text: "What frustrates you most?", MaxFollowUps: 2},
				},
			},
		},
	}
}

func TestCallGuide_Totals(t *testing.T) {
	g := testGuide()
	if got := g.TotalQuestions(); got != 3 {
		t.Errorf("TotalQuestions() = %d, want 3", got)
	}
	if got := g.TotalBudget(); got != 5*time.Minute {
		t.Errorf("TotalBudget() = %v, want 5m", got)
	}
	if got := g.HardCeiling(); got != 5*time.Minute+DefaultOverrunAllowance {
		t.Errorf("HardCeiling() = %v, want budget+allowance", got)
	}
}

func TestCallGuide_MaxDurationCapsCeiling(t *testing.T) {
	g := testGuide()

	g.MaxDuration = 4 * time.Minute
	if got := g.HardCeiling(); got != 4*time.Minute {
		t.Errorf("HardCeiling() = %v, want the max duration cap", got)
	}

	// A cap above budget+allowance has no effect.
	g.MaxDuration = 10 * time.Minute
	if got := g.HardCeiling(); got != 5*time.Minute+DefaultOverrunAllowance {
		t.Errorf("HardCeiling() = %v, want budget+allowance", got)
	}
}

func TestCallGuide_QuestionBounds(t *testing.T) {
	g := testGuide()
	if q, ok := g.Question(0, 1); !ok || q.ID != "q2" {
		t.Errorf("Question(0,1) = %v, %v; want q2", q.ID, ok)
	}
	if _, ok := g.Question(2, 0); ok {
		t.Error("Question past last section should not resolve")
	}
	if _, ok := g.Question(0, 5); ok {
		t.Error("Question past last index should not resolve")
	}
	if _, ok := g.Question(-1, 0); ok {
		t.Error("negative section index should not resolve")
	}
}

func TestCallGuide_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CallGuide)
	}{
		{"missing id", func(g *CallGuide) { g.ID = "" }},
		{"no sections", func(g *CallGuide) { g.Sections = nil }},
		{"zero budget", func(g *CallGuide) { g.Sections[0].Budget = 0 }},
		{"empty section", func(g *CallGuide) { g.Sections[1].Questions = nil }},
		{"empty question text", func(g *CallGuide) { g.Sections[0].Questions[0].Text = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGuide()
			tt.mutate(g)
			err := g.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !core.IsType(err, core.ErrInvalidGuide) {
				t.Errorf("expected invalid_guide error, got %v", err)
			}
		})
	}
	if err := testGuide().Validate(); err != nil {
		t.Errorf("valid guide rejected: %v", err)
	}
}

func TestParse_AssignsDefaults(t *testing.T) {
	const doc = `
id: g2
name: Churn study
sections:
  - name: Intro
    budget: 120s
    questions:
      - text: "What made you sign up?"
      - text: "What almost stopped you?"
        max_follow_ups: 1
`
	g, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q1 := g.Sections[0].Questions[0]
	if q1.ID == "" {
		t.Error("expected generated question id")
	}
	if q1.MaxFollowUps != 2 {
		t.Errorf("default MaxFollowUps = %d, want 2", q1.MaxFollowUps)
	}
	if got := g.Sections[0].Questions[1].MaxFollowUps; got != 1 {
		t.Errorf("explicit MaxFollowUps = %d, want 1", got)
	}
	if g.Sections[0].Budget != 2*time.Minute {
		t.Errorf("budget = %v, want 2m", g.Sections[0].Budget)
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	const doc = `
id: g3
name: Bad guide
bogus_field: true
sections: []
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Error("expected unknown-field error")
	}
}
