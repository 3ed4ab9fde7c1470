// Package notify publishes interview lifecycle events to interested
// listeners: operator dashboards over websocket, logs, or anything else
// implementing Notifier.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	InterviewScheduled EventType = "interview.scheduled"
	InterviewStarted   EventType = "interview.started"
	InterviewCompleted EventType = "interview.completed"
	InterviewFailed    EventType = "interview.failed"
	InterviewEscalated EventType = "interview.escalated"
	InsightsExtracted  EventType = "insights.extracted"
	QualityAlert       EventType = "quality.alert"
)

// Event is one published notification.
type Event struct {
	Type        EventType      `json:"type"`
	InterviewID string         `json:"interview_id"`
	At          time.Time      `json:"at"`
	Data        map[string]any `json:"data,omitempty"`
}

// Notifier delivers events. Publish must not block the interview loop;
// implementations drop or buffer on backpressure.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Log is a Notifier writing events to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log-backed notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Publish logs the event.
func (l *Log) Publish(_ context.Context, ev Event) error {
	l.logger.Info("event", "type", ev.Type, "interview_id", ev.InterviewID, "data", ev.Data)
	return nil
}

// Multi fans one event out to several notifiers. The first error is
// returned but all notifiers are attempted.
type Multi []Notifier

// Publish delivers to every notifier.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
