package interview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/candorlabs/vox/pkg/core/quality"
	"github.com/candorlabs/vox/pkg/notify"
)

// AlertPersister stores raised quality alerts for later audit.
type AlertPersister interface {
	SaveAlert(ctx context.Context, a quality.Alert) error
}

// AlertSink drains the alert manager's channel into persistence,
// notifications, and metrics. Alert handling stays off the interview
// hot path; a slow store never stalls a running call.
type AlertSink struct {
	store    AlertPersister
	notifier notify.Notifier
	metrics  *quality.Metrics
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewAlertSink creates a sink. store, notifier, and metrics may each be
// nil; the sink skips what is absent.
func NewAlertSink(store AlertPersister, notifier notify.Notifier, metrics *quality.Metrics, logger *slog.Logger) *AlertSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertSink{store: store, notifier: notifier, metrics: metrics, logger: logger}
}

// Start consumes alerts until the channel closes or ctx is canceled.
func (s *AlertSink) Start(ctx context.Context, alerts <-chan quality.Alert) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-alerts:
				if !ok {
					return
				}
				s.handle(ctx, a)
			}
		}
	}()
}

// Wait blocks until the drain goroutine exits.
func (s *AlertSink) Wait() { s.wg.Wait() }

func (s *AlertSink) handle(ctx context.Context, a quality.Alert) {
	if s.metrics != nil {
		s.metrics.RecordAlert(a.Metric, a.Severity)
	}
	if s.store != nil {
		if err := s.store.SaveAlert(ctx, a); err != nil {
			s.logger.Warn("persist quality alert failed",
				"alert_id", a.ID,
				"interview_id", a.SessionID,
				"error", err)
		}
	}
	if s.notifier != nil {
		ev := notify.Event{
			Type:        notify.QualityAlert,
			InterviewID: a.SessionID,
			At:          a.RaisedAt,
			Data: map[string]any{
				"metric":    string(a.Metric),
				"severity":  a.Severity.String(),
				"value":     a.Value,
				"threshold": a.Threshold,
			},
		}
		if err := s.notifier.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish quality alert failed",
				"alert_id", a.ID,
				"error", err)
		}
	}
}
