package quality

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alert is one threshold breach. Identity is assigned by the manager.
type Alert struct {
	ID         string
	SessionID  string
	Metric     Metric
	Severity   Severity
	Value      float64
	Threshold  float64
	RaisedAt   time.Time
	AckedAt    time.Time
	ResolvedAt time.Time
}

// Active reports whether the alert has not been resolved.
func (a Alert) Active() bool { return a.ResolvedAt.IsZero() }

// DefaultSuppression is how long a repeated (metric, severity) breach on
// the same session stays silent after an alert fires.
const DefaultSuppression = 5 * time.Minute

// AlertManager deduplicates and fans out alerts. Consumers read the
// delivery channel; a slow consumer drops deliveries rather than
// blocking the recording path, the alert itself is still registered.
type AlertManager struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	// lastAlert points at the most recent alert per key. Suppression
	// only holds while that alert is still active.
	lastAlert   map[suppressionKey]string
	suppression time.Duration
	ch          chan Alert
	logger      *slog.Logger
	now         func() time.Time
}

type suppressionKey struct {
	sessionID string
	metric    Metric
	severity  Severity
}

// NewAlertManager creates a manager with a buffered delivery channel.
// suppression <= 0 uses the default.
func NewAlertManager(suppression time.Duration, logger *slog.Logger) *AlertManager {
	if suppression <= 0 {
		suppression = DefaultSuppression
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertManager{
		alerts:      make(map[string]*Alert),
		lastAlert:   make(map[suppressionKey]string),
		suppression: suppression,
		ch:          make(chan Alert, 64),
		logger:      logger,
		now:         time.Now,
	}
}

// Alerts is the delivery channel. It is never closed.
func (am *AlertManager) Alerts() <-chan Alert { return am.ch }

// Raise registers an alert unless an identical (session, metric,
// severity) breach is still active and fired within the suppression
// window. A resolved alert never suppresses; the next breach of the
// same key registers again. It returns the stored alert and whether it
// was registered.
func (am *AlertManager) Raise(a Alert) (Alert, bool) {
	am.mu.Lock()
	key := suppressionKey{a.SessionID, a.Metric, a.Severity}
	if a.RaisedAt.IsZero() {
		a.RaisedAt = am.now()
	}
	if id, ok := am.lastAlert[key]; ok {
		if prior, ok := am.alerts[id]; ok && prior.Active() && a.RaisedAt.Sub(prior.RaisedAt) < am.suppression {
			am.mu.Unlock()
			return Alert{}, false
		}
	}
	a.ID = uuid.NewString()
	stored := a
	am.alerts[a.ID] = &stored
	am.lastAlert[key] = a.ID
	am.mu.Unlock()

	am.logger.Warn("quality alert",
		"session_id", a.SessionID, "metric", a.Metric,
		"severity", a.Severity.String(), "value", a.Value, "threshold", a.Threshold)
	select {
	case am.ch <- a:
	default:
		am.logger.Warn("alert channel full, delivery dropped", "alert_id", a.ID)
	}
	return a, true
}

// Ack marks an alert acknowledged.
func (am *AlertManager) Ack(id string) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	a, ok := am.alerts[id]
	if !ok || !a.AckedAt.IsZero() {
		return false
	}
	a.AckedAt = am.now()
	return true
}

// Resolve marks an alert resolved. Resolved alerts no longer count
// toward escalation.
func (am *AlertManager) Resolve(id string) bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	a, ok := am.alerts[id]
	if !ok || !a.ResolvedAt.IsZero() {
		return false
	}
	a.ResolvedAt = am.now()
	return true
}

// Active returns the unresolved alerts for a session.
func (am *AlertManager) Active(sessionID string) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()
	var out []Alert
	for _, a := range am.alerts {
		if a.SessionID == sessionID && a.Active() {
			out = append(out, *a)
		}
	}
	return out
}

// ResolveSession resolves every active alert for a terminal session.
func (am *AlertManager) ResolveSession(sessionID string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	now := am.now()
	for _, a := range am.alerts {
		if a.SessionID == sessionID && a.Active() {
			a.ResolvedAt = now
		}
	}
}

// Escalation floors. Sessions this unhealthy are handed to a human even
// when alert suppression would otherwise keep them quiet.
const (
	EscalationCompletionFloor  = 0.30
	EscalationDataQualityFloor = 0.30
	EscalationAlertCount       = 3
)

// ShouldEscalate reports whether a session crossed an escalation
// condition: completion rate or data quality under the hard floor, or
// three or more distinct active alerts at warning severity or above. The
// floors bypass suppression, a suppressed repeat breach still counts
// here because the floors read the monitor's live aggregates.
func ShouldEscalate(m *Monitor, am *AlertManager, sessionID string) (string, bool) {
	if v, ok := m.Value(sessionID, MetricCompletionRate); ok && v < EscalationCompletionFloor {
		return "completion_rate_below_floor", true
	}
	if v, ok := m.Value(sessionID, MetricDataQuality); ok && v < EscalationDataQualityFloor {
		return "data_quality_below_floor", true
	}
	distinct := make(map[Metric]bool)
	for _, a := range am.Active(sessionID) {
		if a.Severity >= SeverityWarning {
			distinct[a.Metric] = true
		}
	}
	if len(distinct) >= EscalationAlertCount {
		return "multiple_active_alerts", true
	}
	return "", false
}
