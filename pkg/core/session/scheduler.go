package session

import (
	"time"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/guide"
)

// Scheduler tracks per-section and interview-level time allowances and
// decides when a section must be forcibly closed.
type Scheduler struct {
	guide     *guide.CallGuide
	elapsed   []time.Duration
	total     time.Duration
	exhausted []bool
}

// NewScheduler creates a scheduler over a guide's section budgets.
func NewScheduler(g *guide.CallGuide) *Scheduler {
	return &Scheduler{
		guide:     g,
		elapsed:   make([]time.Duration, len(g.Sections)),
		exhausted: make([]bool, len(g.Sections)),
	}
}

// Tick charges elapsed time to the given section. When the section's
// budget is spent, the section is marked exhausted. When the
// interview-level ceiling is reached, Tick returns core.ErrBudgetExhausted,
// the signal to force completion regardless of guide position.
func (sc *Scheduler) Tick(section int, elapsed time.Duration) error {
	if section < 0 || section >= len(sc.elapsed) {
		return nil
	}
	sc.elapsed[section] += elapsed
	sc.total += elapsed

	if sc.elapsed[section] >= sc.guide.Sections[section].Budget {
		sc.exhausted[section] = true
	}

	if sc.total >= sc.guide.HardCeiling() {
		return core.ErrBudgetExhausted
	}
	return nil
}

// SectionExhausted reports whether a section spent its budget.
func (sc *Scheduler) SectionExhausted(section int) bool {
	if section < 0 || section >= len(sc.exhausted) {
		return false
	}
	return sc.exhausted[section]
}

// SectionElapsed returns the time charged to a section so far.
func (sc *Scheduler) SectionElapsed(section int) time.Duration {
	if section < 0 || section >= len(sc.elapsed) {
		return 0
	}
	return sc.elapsed[section]
}

// TotalElapsed returns the time charged across all sections.
func (sc *Scheduler) TotalElapsed() time.Duration { return sc.total }

// Remaining returns the unspent portion of the interview ceiling.
func (sc *Scheduler) Remaining() time.Duration {
	r := sc.guide.HardCeiling() - sc.total
	if r < 0 {
		return 0
	}
	return r
}
