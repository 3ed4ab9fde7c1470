package interview

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultDispatchSpec runs the due-interview sweep every 30 seconds.
const DefaultDispatchSpec = "@every 30s"

const dispatchTimeout = 30 * time.Second

// Dispatcher periodically starts scheduled interviews whose time has
// come, bounded by the service's concurrency capacity.
type Dispatcher struct {
	svc    *Service
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher sweeping on the given cron spec.
func NewDispatcher(svc *Service, spec string, logger *slog.Logger) (*Dispatcher, error) {
	if spec == "" {
		spec = DefaultDispatchSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		svc:    svc,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
	if _, err := d.cron.AddFunc(spec, d.sweep); err != nil {
		return nil, err
	}
	return d, nil
}

// Start begins sweeping in the background.
func (d *Dispatcher) Start() { d.cron.Start() }

// Stop halts sweeping and waits for an in-flight sweep to finish.
// Running interviews are not interrupted.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// sweep starts due interviews up to the service's free capacity.
func (d *Dispatcher) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	capacity := d.svc.Capacity()
	if capacity <= 0 {
		return
	}
	due, err := d.svc.persister.DueInterviews(ctx, d.now(), capacity)
	if err != nil {
		d.logger.Error("due interview query failed", "err", err)
		return
	}
	for _, iv := range due {
		if err := d.svc.Start(ctx, iv); err != nil {
			d.logger.Error("dispatch failed", "interview_id", iv.ID, "err", err)
			continue
		}
		d.logger.Info("dispatched interview", "interview_id", iv.ID, "scheduled_at", iv.ScheduledAt)
	}
}

// SweepNow runs one sweep synchronously, outside the cron schedule.
func (d *Dispatcher) SweepNow() { d.sweep() }
