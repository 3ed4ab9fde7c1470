// Package session holds per-interview conversation state: position in the
// guide, the bounded follow-up stack, response history, and the section
// time-budget scheduler. One State is mutated by exactly one session
// loop; reads from other goroutines (status calls, snapshots) are
// synchronized internally.
package session

import (
	"sync"
	"time"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/guide"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConsent    Status = "consent"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusEscalated  Status = "escalated"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusEscalated
}

// PendingFollowUp is a probe queued for the current question.
type PendingFollowUp struct {
	Question         string
	Trigger          string
	Source           string
	ParentQuestionID string
}

// DefaultMaxFollowUpDepth bounds the probe stack per question.
const DefaultMaxFollowUpDepth = 2

// State tracks one interview's conversation. Mutation goes through the
// methods below, which preserve the invariants: indices never regress,
// the follow-up stack never exceeds its depth limit, and history is
// append-only.
type State struct {
	InterviewID string
	Guide       *guide.CallGuide

	// mu guards everything below. The session loop is the only writer,
	// but Snapshot and the accessors may be called from other goroutines
	// while the loop runs.
	mu sync.Mutex

	status   Status
	section  int
	question int

	followUps []PendingFollowUp
	// depth counts probes asked for the current scripted question. It
	// resets when the session advances to the next question.
	depth    int
	maxDepth int

	history []analysis.Response

	sched *Scheduler

	ConsentGiven  bool
	FailureReason string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// New creates session state positioned before the first question.
func New(interviewID string, g *guide.CallGuide, maxDepth int) *State {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxFollowUpDepth
	}
	return &State{
		InterviewID: interviewID,
		Guide:       g,
		status:      StatusScheduled,
		maxDepth:    maxDepth,
		sched:       NewScheduler(g),
	}
}

// Status returns the current lifecycle state.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Scheduler exposes the time-budget scheduler for this session. Only
// the session loop may call it.
func (s *State) Scheduler() *Scheduler { return s.sched }

// Section returns the current section index.
func (s *State) Section() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.section
}

// QuestionIndex returns the current question index within the section.
func (s *State) QuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question
}

// Depth returns the follow-up depth for the current question.
func (s *State) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

// MaxDepth returns the configured follow-up depth limit.
func (s *State) MaxDepth() int { return s.maxDepth }

// History returns the recorded responses, oldest first. The slice must
// not be mutated by callers.
func (s *State) History() []analysis.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// CurrentQuestion resolves the scripted question at the current position.
func (s *State) CurrentQuestion() (guide.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Guide.Question(s.section, s.question)
}

// Begin moves the session into the consent phase.
func (s *State) Begin(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusScheduled {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "begin from " + string(s.status)}
	}
	s.status = StatusConsent
	s.StartedAt = now
	return nil
}

// GrantConsent records consent and opens the main interview.
func (s *State) GrantConsent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConsent {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "consent from " + string(s.status)}
	}
	s.ConsentGiven = true
	s.status = StatusInProgress
	return nil
}

// Fail marks the session failed with a reason. Allowed from any
// non-terminal state (cancellation can strike while still scheduled).
func (s *State) Fail(reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "fail from " + string(s.status)}
	}
	s.status = StatusFailed
	s.FailureReason = reason
	s.CompletedAt = now
	return nil
}

// Escalate hands the session to human review.
func (s *State) Escalate(reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConsent && s.status != StatusInProgress {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "escalate from " + string(s.status)}
	}
	s.status = StatusEscalated
	s.FailureReason = reason
	s.CompletedAt = now
	return nil
}

// Complete marks the session finished. Partial completion is valid:
// reaching the hard time ceiling completes rather than fails.
func (s *State) Complete(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "complete from " + string(s.status)}
	}
	s.status = StatusCompleted
	s.CompletedAt = now
	return nil
}

// Record appends a response to history.
func (s *State) Record(r analysis.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
}

// PushFollowUp queues a probe for the current question. It fails with
// depth_exceeded when the stack already holds maxDepth probes for this
// question, and refuses outright when the section budget is spent.
func (s *State) PushFollowUp(f PendingFollowUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth >= s.maxDepth {
		return core.NewDepthExceeded(s.depth, s.maxDepth)
	}
	if s.sched.SectionExhausted(s.section) {
		return core.ErrBudgetExhausted
	}
	s.followUps = append(s.followUps, f)
	s.depth++
	return nil
}

// PopFollowUp removes and returns the most recently queued probe.
func (s *State) PopFollowUp() (PendingFollowUp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.followUps) == 0 {
		return PendingFollowUp{}, false
	}
	f := s.followUps[len(s.followUps)-1]
	s.followUps = s.followUps[:len(s.followUps)-1]
	return f, true
}

// PendingFollowUps returns how many probes are queued.
func (s *State) PendingFollowUps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.followUps)
}

// AdvanceQuestion moves to the next question, or the next section when
// the current one is exhausted, or returns core.ErrGuideExhausted when
// the guide is done. Guide exhaustion is the normal completion trigger,
// not an error.
//
// When the scheduler marked the current section budget_exhausted, the
// advance skips straight to the next section and discards any pending
// follow-ups. Indices never regress.
func (s *State) AdvanceQuestion() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return &core.Error{Type: core.ErrInvalidTransition, Message: "advance from " + string(s.status)}
	}

	s.followUps = s.followUps[:0]
	s.depth = 0

	if s.sched.SectionExhausted(s.section) || s.question+1 >= len(s.Guide.Sections[s.section].Questions) {
		return s.advanceSection()
	}
	s.question++
	return nil
}

func (s *State) advanceSection() error {
	if s.section+1 >= len(s.Guide.Sections) {
		return core.ErrGuideExhausted
	}
	s.section++
	s.question = 0
	return nil
}

// Tick charges elapsed wall time to the current section. When the
// interview-level ceiling is reached it returns core.ErrBudgetExhausted;
// the orchestrator responds by completing the session.
func (s *State) Tick(elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Tick(s.section, elapsed)
}

// Snapshot is an immutable copy of state for persistence and status calls.
type Snapshot struct {
	InterviewID   string
	GuideID       string
	Status        Status
	Section       int
	Question      int
	Depth         int
	Responses     []analysis.Response
	ConsentGiven  bool
	FailureReason string
	StartedAt     time.Time
	CompletedAt   time.Time
	Elapsed       time.Duration
}

// Snapshot captures the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := make([]analysis.Response, len(s.history))
	copy(hist, s.history)
	return Snapshot{
		InterviewID:   s.InterviewID,
		GuideID:       s.Guide.ID,
		Status:        s.status,
		Section:       s.section,
		Question:      s.question,
		Depth:         s.depth,
		Responses:     hist,
		ConsentGiven:  s.ConsentGiven,
		FailureReason: s.FailureReason,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		Elapsed:       s.sched.TotalElapsed(),
	}
}
