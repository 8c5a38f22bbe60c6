package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

// PipelineMetrics records review runs, per-document outcomes and analysis
// retries.
type PipelineMetrics struct {
	service string

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runsInFlight    prometheus.Gauge
	documentsTotal  *prometheus.CounterVec
	documentSeconds *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptr",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total finished review runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ptr",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Review run duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ptr",
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of review runs in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptr",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total analyzed documents by outcome.",
		},
		[]string{"service", "outcome"},
	)
	documentSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ptr",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Per-document classification duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 90, 180},
		},
		[]string{"service", "outcome"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptr",
			Subsystem: "analysis",
			Name:      "retries_total",
			Help:      "Analysis service calls retried by operation and reason.",
		},
		[]string{"service", "operation", "reason"},
	)

	registerer.MustRegister(runsTotal, runDuration, runsInFlight, documentsTotal, documentSeconds, retriesTotal)

	return &PipelineMetrics{
		service:         service,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		runsInFlight:    runsInFlight,
		documentsTotal:  documentsTotal,
		documentSeconds: documentSeconds,
		retriesTotal:    retriesTotal,
	}
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(status domain.TaskStatus, duration time.Duration) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(m.service, string(status)).Inc()
	m.runDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveDocument(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.documentsTotal.WithLabelValues(m.service, outcome).Inc()
	m.documentSeconds.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordAnalysisRetry(operation, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.retriesTotal.WithLabelValues(m.service, operation, reason).Inc()
}
