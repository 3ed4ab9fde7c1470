package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/guide"
	"github.com/candorlabs/vox/pkg/core/learning"
	"github.com/candorlabs/vox/pkg/core/session"
	"github.com/candorlabs/vox/pkg/notify"
)

// GuideSource resolves guide ids to loaded guides.
type GuideSource interface {
	Guide(ctx context.Context, id string) (*guide.CallGuide, error)
}

// DefaultMaxConcurrent caps simultaneously running interviews.
const DefaultMaxConcurrent = 8

// Service schedules interviews and owns the running sessions. All its
// methods are safe for concurrent use.
type Service struct {
	orch      *Orchestrator
	persister Persister
	guides    GuideSource
	learning  *learning.Store
	notifier  notify.Notifier
	logger    *slog.Logger

	maxConcurrent int
	maxDepth      int

	mu      sync.Mutex
	running map[string]*runningSession
	wg      sync.WaitGroup

	now func() time.Time
}

type runningSession struct {
	cancel context.CancelFunc
	st     *session.State
	iv     Interview
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxConcurrent overrides the running-interview cap.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithMaxFollowUpDepth overrides the per-question probe depth.
func WithMaxFollowUpDepth(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires a service around an orchestrator.
func NewService(orch *Orchestrator, persister Persister, guides GuideSource, ls *learning.Store, notifier notify.Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		orch:          orch,
		persister:     persister,
		guides:        guides,
		learning:      ls,
		notifier:      notifier,
		logger:        slog.Default(),
		maxConcurrent: DefaultMaxConcurrent,
		maxDepth:      session.DefaultMaxFollowUpDepth,
		running:       make(map[string]*runningSession),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records an interview to be started at the given time.
func (s *Service) Schedule(ctx context.Context, guideID, respondent string, at time.Time) (Interview, error) {
	if _, err := s.guides.Guide(ctx, guideID); err != nil {
		return Interview{}, err
	}
	iv := Interview{
		ID:          uuid.NewString(),
		GuideID:     guideID,
		Respondent:  respondent,
		Status:      session.StatusScheduled,
		ScheduledAt: at,
	}
	if err := s.persister.CreateInterview(ctx, iv); err != nil {
		return Interview{}, err
	}
	if s.notifier != nil {
		_ = s.notifier.Publish(ctx, notify.Event{
			Type: notify.InterviewScheduled, InterviewID: iv.ID, At: s.now(),
			Data: map[string]any{"guide_id": guideID, "at": at},
		})
	}
	s.logger.Info("interview scheduled", "interview_id", iv.ID, "guide_id", guideID, "at", at)
	return iv, nil
}

// Start launches a scheduled interview in its own goroutine. It fails
// when the interview is already running or the concurrency cap is hit.
func (s *Service) Start(ctx context.Context, iv Interview) error {
	g, err := s.guides.Guide(ctx, iv.GuideID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.running[iv.ID]; exists {
		s.mu.Unlock()
		return &core.Error{Type: core.ErrInvalidTransition, Message: "interview already running: " + iv.ID}
	}
	if len(s.running) >= s.maxConcurrent {
		s.mu.Unlock()
		return &core.Error{Type: core.ErrProviderUnavailable, Message: "interview capacity reached"}
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	st := session.New(iv.ID, g, s.maxDepth)
	rs := &runningSession{cancel: cancel, st: st, iv: iv}
	s.running[iv.ID] = rs
	s.wg.Add(1)
	s.mu.Unlock()

	// Claim the row so a dispatcher sweep cannot start it twice.
	claimed := iv
	claimed.Status = session.StatusInProgress
	if err := s.persister.UpdateInterview(ctx, claimed); err != nil {
		s.mu.Lock()
		delete(s.running, iv.ID)
		s.mu.Unlock()
		s.wg.Done()
		cancel()
		return err
	}

	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.orch.Run(runCtx, &rs.iv, st); err != nil {
			s.logger.Error("interview run failed", "interview_id", iv.ID, "err", err)
		}
		s.mu.Lock()
		delete(s.running, iv.ID)
		s.mu.Unlock()
		persistCtx, pcancel := context.WithTimeout(context.WithoutCancel(runCtx), 10*time.Second)
		s.savePatterns(persistCtx)
		pcancel()
	}()
	return nil
}

// Status returns a running interview's live snapshot. ok is false when
// the interview is not running; terminal interviews live in the store.
func (s *Service) Status(interviewID string) (session.Snapshot, bool) {
	s.mu.Lock()
	rs, ok := s.running[interviewID]
	s.mu.Unlock()
	if !ok {
		return session.Snapshot{}, false
	}
	return rs.st.Snapshot(), true
}

// Running returns the number of in-flight interviews.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Cancel stops a running interview. The session loop observes the
// cancellation at its next provider call and fails the interview.
func (s *Service) Cancel(interviewID string) bool {
	s.mu.Lock()
	rs, ok := s.running[interviewID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	rs.cancel()
	return true
}

// Capacity returns how many more interviews may start now.
func (s *Service) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConcurrent - len(s.running)
}

// Close cancels every running interview and waits for their loops to
// reach a terminal state.
func (s *Service) Close() {
	s.mu.Lock()
	for _, rs := range s.running {
		rs.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// RestorePatterns merges the persisted learning snapshot into the store.
func (s *Service) RestorePatterns(ctx context.Context) error {
	data, err := s.persister.LoadPatterns(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return s.learning.Import(data)
}

func (s *Service) savePatterns(ctx context.Context) {
	if s.learning == nil || s.persister == nil {
		return
	}
	data, err := s.learning.Export()
	if err != nil {
		s.logger.Error("pattern snapshot export failed", "err", err)
		return
	}
	if err := s.persister.SavePatterns(ctx, data); err != nil {
		s.logger.Error("pattern snapshot persist failed", "err", err)
	}
}
