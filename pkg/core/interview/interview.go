// Package interview runs scheduled voice interviews end to end: the
// per-session orchestrator loop and the service that schedules, starts,
// tracks and cancels sessions.
package interview

import (
	"context"
	"time"

	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/session"
)

// Interview is the persisted record of one interview.
type Interview struct {
	ID            string
	GuideID       string
	Respondent    string
	Status        session.Status
	ScheduledAt   time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	FailureReason string
	Engagement    EngagementMetrics
}

// EngagementMetrics summarize respondent engagement, computed when the
// interview reaches a terminal state.
type EngagementMetrics struct {
	Responses          int
	FollowUps          int
	Unintelligible     int
	AvgResponseWords   float64
	AvgResponseLatency time.Duration
	// Score folds length, sentiment and intelligibility into [0, 1].
	Score float64
}

// Persister stores interview records. Implementations live in pkg/store;
// failures are reported as *core.Error with type persistence_failure.
type Persister interface {
	CreateInterview(ctx context.Context, iv Interview) error
	UpdateInterview(ctx context.Context, iv Interview) error
	SaveResponses(ctx context.Context, interviewID string, responses []analysis.Response) error
	// DueInterviews returns scheduled interviews whose start time has
	// passed, oldest first, at most limit.
	DueInterviews(ctx context.Context, now time.Time, limit int) ([]Interview, error)
	// SavePatterns and LoadPatterns store the learning store's serialized
	// snapshot. Loading an absent snapshot returns empty bytes, not an
	// error.
	SavePatterns(ctx context.Context, snapshot []byte) error
	LoadPatterns(ctx context.Context) ([]byte, error)
}
