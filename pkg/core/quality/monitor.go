// Package quality watches per-session health metrics, raises alerts when
// thresholds are crossed, and decides when a session must be escalated to
// a human operator.
package quality

import (
	"log/slog"
	"sync"
	"time"
)

// Metric names a monitored signal.
type Metric string

const (
	MetricEngagement      Metric = "engagement"
	MetricCompletionRate  Metric = "completion_rate"
	MetricResponseQuality Metric = "response_quality"
	MetricErrorRate       Metric = "error_rate"
	MetricSTTAccuracy     Metric = "stt_accuracy"
	MetricResponseLatency Metric = "response_latency"
	MetricDataQuality     Metric = "data_quality"
)

// Severity orders alert levels.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Comparator decides which side of a threshold is unhealthy.
type Comparator int

const (
	// LessThan: values below the threshold breach it (engagement, accuracy).
	LessThan Comparator = iota
	// GreaterThan: values above the threshold breach it (error rate, latency).
	GreaterThan
)

// Threshold holds the breach levels for one metric. Zero levels are
// treated as unset.
type Threshold struct {
	Warning  float64
	Error    float64
	Critical float64
	Compare  Comparator
	// Window bounds how far back samples count toward the aggregate.
	Window time.Duration
	// Aggregate selects mean (default) or latest-sample evaluation.
	Aggregate Aggregate
}

// Aggregate selects how windowed samples reduce to one value.
type Aggregate int

const (
	AggregateMean Aggregate = iota
	AggregateLatest
)

// DefaultThresholds are the stock per-metric breach levels.
func DefaultThresholds() map[Metric]Threshold {
	return map[Metric]Threshold{
		MetricEngagement:      {Warning: 0.5, Error: 0.3, Critical: 0.2, Compare: LessThan, Window: 2 * time.Minute},
		MetricCompletionRate:  {Warning: 0.7, Error: 0.5, Critical: 0.3, Compare: LessThan, Window: 10 * time.Minute, Aggregate: AggregateLatest},
		MetricResponseQuality: {Warning: 0.6, Error: 0.4, Critical: 0.2, Compare: LessThan, Window: 5 * time.Minute},
		MetricErrorRate:       {Warning: 0.1, Error: 0.2, Critical: 0.3, Compare: GreaterThan, Window: 5 * time.Minute, Aggregate: AggregateLatest},
		MetricSTTAccuracy:     {Warning: 0.9, Error: 0.85, Critical: 0.8, Compare: LessThan, Window: 5 * time.Minute},
		MetricResponseLatency: {Warning: 3, Error: 5, Critical: 8, Compare: GreaterThan, Window: 2 * time.Minute},
		// data_quality feeds the escalation floor only; a critical alert
		// fires at the floor itself.
		MetricDataQuality: {Critical: 0.3, Compare: LessThan, Window: 10 * time.Minute, Aggregate: AggregateLatest},
	}
}

type sample struct {
	value float64
	at    time.Time
}

const maxWindowSamples = 128

type window struct {
	samples []sample
}

func (w *window) add(s sample, maxAge time.Duration) {
	w.samples = append(w.samples, s)
	cutoff := s.at.Add(-maxAge)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]
	if len(w.samples) > maxWindowSamples {
		w.samples = w.samples[len(w.samples)-maxWindowSamples:]
	}
}

func (w *window) reduce(agg Aggregate) (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	if agg == AggregateLatest {
		return w.samples[len(w.samples)-1].value, true
	}
	var sum float64
	for _, s := range w.samples {
		sum += s.value
	}
	return sum / float64(len(w.samples)), true
}

// Monitor records metric samples per session and turns threshold
// breaches into alerts on the attached manager. Safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	sessions   map[string]map[Metric]*window
	thresholds map[Metric]Threshold
	alerts     *AlertManager
	logger     *slog.Logger
	now        func() time.Time
}

// NewMonitor creates a monitor wired to an alert manager. thresholds may
// be nil to use the defaults.
func NewMonitor(alerts *AlertManager, thresholds map[Metric]Threshold, logger *slog.Logger) *Monitor {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sessions:   make(map[string]map[Metric]*window),
		thresholds: thresholds,
		alerts:     alerts,
		logger:     logger,
		now:        time.Now,
	}
}

// Record adds a sample and evaluates the metric's threshold against the
// windowed aggregate, raising an alert on breach.
func (m *Monitor) Record(sessionID string, metric Metric, value float64) {
	m.mu.Lock()
	th, known := m.thresholds[metric]
	if !known {
		m.mu.Unlock()
		return
	}
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = make(map[Metric]*window)
		m.sessions[sessionID] = sess
	}
	w, ok := sess[metric]
	if !ok {
		w = &window{}
		sess[metric] = w
	}
	now := m.now()
	w.add(sample{value: value, at: now}, th.Window)
	agg, ok := w.reduce(th.Aggregate)
	m.mu.Unlock()
	if !ok {
		return
	}

	sev, breached := th.classify(agg)
	if !breached {
		return
	}
	m.alerts.Raise(Alert{
		SessionID: sessionID,
		Metric:    metric,
		Severity:  sev,
		Value:     agg,
		Threshold: th.level(sev),
		RaisedAt:  now,
	})
}

// Value returns the current windowed aggregate for a session metric.
func (m *Monitor) Value(sessionID string, metric Metric) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return 0, false
	}
	w, ok := sess[metric]
	if !ok {
		return 0, false
	}
	th := m.thresholds[metric]
	return w.reduce(th.Aggregate)
}

// Forget drops a session's windows once the session is terminal.
func (m *Monitor) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// classify maps an aggregate to the highest breached severity.
func (t Threshold) classify(v float64) (Severity, bool) {
	breach := func(level float64) bool {
		if level == 0 {
			return false
		}
		if t.Compare == LessThan {
			return v < level
		}
		return v > level
	}
	switch {
	case breach(t.Critical):
		return SeverityCritical, true
	case breach(t.Error):
		return SeverityError, true
	case breach(t.Warning):
		return SeverityWarning, true
	default:
		return SeverityInfo, false
	}
}

func (t Threshold) level(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return t.Critical
	case SeverityError:
		return t.Error
	default:
		return t.Warning
	}
}
