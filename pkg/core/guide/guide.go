// Package guide defines the call guide: the scripted structure an
// interview follows. A guide is immutable once an interview starts.
package guide

import (
	"strconv"
	"time"

	"github.com/candorlabs/vox/pkg/core"
)

// TriggerType identifies the condition that can fire a follow-up probe.
type TriggerType string

const (
	TriggerVague         TriggerType = "vague"
	TriggerContradiction TriggerType = "contradiction"
	TriggerEmotional     TriggerType = "emotional"
	TriggerHighValue     TriggerType = "high_value_topic"
)

// FollowUpTrigger configures a scripted probe for one question.
type FollowUpTrigger struct {
	Type     TriggerType `yaml:"type"`
	Template string      `yaml:"template,omitempty"`
	Priority int         `yaml:"priority,omitempty"`
}

// Question is one scripted question within a section.
type Question struct {
	ID           string            `yaml:"id"`
	Text         string            `yaml:"text"`
	Required     bool              `yaml:"required"`
	MaxFollowUps int               `yaml:"max_follow_ups,omitempty"`
	Triggers     []FollowUpTrigger `yaml:"triggers,omitempty"`
}

// Section groups related questions under one time budget.
type Section struct {
	Name      string        `yaml:"name"`
	Objective string        `yaml:"objective,omitempty"`
	Budget    time.Duration `yaml:"budget"`
	Questions []Question    `yaml:"questions"`
}

// CallGuide is the complete scripted structure of an interview.
type CallGuide struct {
	ID                 string        `yaml:"id"`
	Name               string        `yaml:"name"`
	ResearchObjective  string        `yaml:"research_objective,omitempty"`
	Sections           []Section     `yaml:"sections"`
	MaxDuration        time.Duration `yaml:"max_duration,omitempty"`
	OverrunAllowance   time.Duration `yaml:"overrun_allowance,omitempty"`
	ConsentStatement   string        `yaml:"consent_statement,omitempty"`
	IntroductionScript string        `yaml:"introduction,omitempty"`
	ClosingScript      string        `yaml:"closing,omitempty"`
	Version            string        `yaml:"version,omitempty"`
}

// DefaultOverrunAllowance bounds how far past the summed section budgets
// an interview may run before it is force-completed.
const DefaultOverrunAllowance = 60 * time.Second

// TotalQuestions returns the number of scripted questions across all sections.
func (g *CallGuide) TotalQuestions() int {
	n := 0
	for _, s := range g.Sections {
		n += len(s.Questions)
	}
	return n
}

// TotalBudget sums the per-section budgets.
func (g *CallGuide) TotalBudget() time.Duration {
	var total time.Duration
	for _, s := range g.Sections {
		total += s.Budget
	}
	return total
}

// HardCeiling is the interview-level time ceiling: the sum of all section
// budgets plus the overrun allowance, capped by MaxDuration when the guide
// sets one. Hitting it forces completion, never failure.
func (g *CallGuide) HardCeiling() time.Duration {
	allowance := g.OverrunAllowance
	if allowance <= 0 {
		allowance = DefaultOverrunAllowance
	}
	ceiling := g.TotalBudget() + allowance
	if g.MaxDuration > 0 && g.MaxDuration < ceiling {
		return g.MaxDuration
	}
	return ceiling
}

// Question returns the question at (section, question) or false when the
// indices fall outside the guide.
func (g *CallGuide) Question(section, question int) (Question, bool) {
	if section < 0 || section >= len(g.Sections) {
		return Question{}, false
	}
	qs := g.Sections[section].Questions
	if question < 0 || question >= len(qs) {
		return Question{}, false
	}
	return qs[question], true
}

// Validate checks structural invariants before a guide may be used.
func (g *CallGuide) Validate() error {
	if g.ID == "" {
		return core.NewInvalidGuide("guide id is required")
	}
	if len(g.Sections) == 0 {
		return core.NewInvalidGuide("guide has no sections")
	}
	for i, s := range g.Sections {
		if s.Name == "" {
			return core.NewInvalidGuide("section " + strconv.Itoa(i) + " has no name")
		}
		if s.Budget <= 0 {
			return core.NewInvalidGuide("section " + s.Name + " has no time budget")
		}
		if len(s.Questions) == 0 {
			return core.NewInvalidGuide("section " + s.Name + " has no questions")
		}
		for _, q := range s.Questions {
			if q.Text == "" {
				return core.NewInvalidGuide("section " + s.Name + " contains an empty question")
			}
			if q.MaxFollowUps < 0 {
				return core.NewInvalidGuide("question " + q.ID + " has negative max_follow_ups")
			}
		}
	}
	return nil
}
