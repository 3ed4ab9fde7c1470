package session

import (
	"errors"
	"testing"
	"time"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
)

func respWith(questionID string, density float64) analysis.Response {
	return analysis.Response{
		QuestionID: questionID,
		Text:       "answer",
		Analysis:   analysis.Analysis{Density: density},
		AnsweredAt: time.Now(),
	}
}

func TestScheduler_SectionAccounting(t *testing.T) {
	g := twoSectionGuide()
	sc := NewScheduler(g)

	if err := sc.Tick(0, 45*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sc.Tick(1, 20*time.Second); err != nil {
		t.Fatal(err)
	}
	if got := sc.SectionElapsed(0); got != 45*time.Second {
		t.Errorf("section 0 elapsed = %v", got)
	}
	if got := sc.SectionElapsed(1); got != 20*time.Second {
		t.Errorf("section 1 elapsed = %v", got)
	}
	if got := sc.TotalElapsed(); got != 65*time.Second {
		t.Errorf("total elapsed = %v", got)
	}
	if sc.SectionExhausted(0) || sc.SectionExhausted(1) {
		t.Error("no section should be exhausted yet")
	}
}

func TestScheduler_ExhaustionAtBudget(t *testing.T) {
	g := twoSectionGuide() // section 1 budget: 1 minute
	sc := NewScheduler(g)

	_ = sc.Tick(1, 59*time.Second)
	if sc.SectionExhausted(1) {
		t.Error("exhausted below budget")
	}
	_ = sc.Tick(1, 1*time.Second)
	if !sc.SectionExhausted(1) {
		t.Error("not exhausted at exactly the budget")
	}
}

func TestScheduler_CeilingSignal(t *testing.T) {
	g := twoSectionGuide()
	g.OverrunAllowance = 10 * time.Second // ceiling 3m10s
	sc := NewScheduler(g)

	if err := sc.Tick(0, 3*time.Minute); err != nil {
		t.Fatalf("below ceiling: %v", err)
	}
	err := sc.Tick(1, 10*time.Second)
	if !errors.Is(err, core.ErrBudgetExhausted) {
		t.Errorf("at ceiling: got %v, want budget exhausted", err)
	}
	if sc.Remaining() != 0 {
		t.Errorf("remaining = %v, want 0", sc.Remaining())
	}
}

func TestScheduler_OutOfRangeSectionIgnored(t *testing.T) {
	sc := NewScheduler(twoSectionGuide())
	if err := sc.Tick(9, time.Minute); err != nil {
		t.Errorf("tick out of range: %v", err)
	}
	if sc.SectionExhausted(9) {
		t.Error("out-of-range section reported exhausted")
	}
}
