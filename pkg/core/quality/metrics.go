package quality

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the interview core.
type Metrics struct {
	registry *prometheus.Registry

	// Interview lifecycle metrics
	InterviewsTotal   *prometheus.CounterVec
	InterviewDuration prometheus.Histogram
	InterviewsActive  prometheus.Gauge

	// Follow-up metrics
	FollowUpsTotal *prometheus.CounterVec

	// Response metrics
	InformationDensity prometheus.Histogram
	ResponseQuality    prometheus.Histogram

	// Provider latency metrics
	STTLatency prometheus.Histogram
	LLMLatency *prometheus.HistogramVec

	// Escalation and error metrics
	EscalationsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	AlertsTotal      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vox"
	}

	registry := prometheus.NewRegistry()

	interviewsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_total",
			Help:      "Total number of interviews by terminal status",
		},
		[]string{"status"},
	)

	interviewDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interview_duration_seconds",
			Help:      "Interview duration in seconds",
			Buckets:   []float64{60, 120, 300, 600, 900, 1200, 1800, 2700},
		},
	)

	interviewsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interviews_active",
			Help:      "Number of interviews currently running",
		},
	)

	followUpsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_ups_generated_total",
			Help:      "Total follow-up questions asked",
		},
		[]string{"trigger", "source"},
	)

	informationDensity := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "information_density",
			Help:      "Per-response information density",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		},
	)

	responseQuality := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_quality",
			Help:      "Per-response quality score",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		},
	)

	sttLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech capture latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	llmLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total interviews escalated to a human operator",
		},
		[]string{"reason"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	alertsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_alerts_total",
			Help:      "Total quality alerts raised",
		},
		[]string{"metric", "severity"},
	)

	registry.MustRegister(
		interviewsTotal,
		interviewDuration,
		interviewsActive,
		followUpsTotal,
		informationDensity,
		responseQuality,
		sttLatency,
		llmLatency,
		escalationsTotal,
		errorsTotal,
		alertsTotal,
	)

	return &Metrics{
		registry:           registry,
		InterviewsTotal:    interviewsTotal,
		InterviewDuration:  interviewDuration,
		InterviewsActive:   interviewsActive,
		FollowUpsTotal:     followUpsTotal,
		InformationDensity: informationDensity,
		ResponseQuality:    responseQuality,
		STTLatency:         sttLatency,
		LLMLatency:         llmLatency,
		EscalationsTotal:   escalationsTotal,
		ErrorsTotal:        errorsTotal,
		AlertsTotal:        alertsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordInterviewStart records an interview entering its run loop.
func (m *Metrics) RecordInterviewStart() {
	m.InterviewsActive.Inc()
}

// RecordInterviewEnd records a terminal interview.
func (m *Metrics) RecordInterviewEnd(status string, duration time.Duration) {
	m.InterviewsActive.Dec()
	m.InterviewsTotal.WithLabelValues(status).Inc()
	m.InterviewDuration.Observe(duration.Seconds())
}

// RecordFollowUp records one asked follow-up.
func (m *Metrics) RecordFollowUp(trigger, source string) {
	m.FollowUpsTotal.WithLabelValues(trigger, source).Inc()
}

// RecordResponse records the analysis scores of one answer.
func (m *Metrics) RecordResponse(density, qualityScore float64) {
	m.InformationDensity.Observe(density)
	m.ResponseQuality.Observe(qualityScore)
}

// RecordSTTLatency records one speech capture round trip.
func (m *Metrics) RecordSTTLatency(d time.Duration) {
	m.STTLatency.Observe(d.Seconds())
}

// RecordLLMLatency records one analyzer or generator call.
func (m *Metrics) RecordLLMLatency(provider, operation string, d time.Duration) {
	m.LLMLatency.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// RecordEscalation records a handoff to a human operator.
func (m *Metrics) RecordEscalation(reason string) {
	m.EscalationsTotal.WithLabelValues(reason).Inc()
}

// RecordError records a component error.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordAlert records a raised quality alert.
func (m *Metrics) RecordAlert(metric Metric, sev Severity) {
	m.AlertsTotal.WithLabelValues(string(metric), sev.String()).Inc()
}
