package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis outcomes recorded on AnalysesTotal.
const (
	AnalysisOK           = "ok"
	AnalysisInsufficient = "insufficient"
	AnalysisFailed       = "failed"
	AnalysisTimeout      = "timeout"
	AnalysisDropped      = "dropped"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Command recording
	CommandsRecorded *prometheus.CounterVec

	// Background timing analysis
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	AnalysisQueue    prometheus.Gauge

	// Scoring and enforcement
	SuspicionScore *prometheus.HistogramVec
	Decisions      *prometheus.CounterVec
	TrustDeltas    *prometheus.CounterVec

	// Upstream health
	UpstreamFailures    *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
	EventsDropped       prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsRecorded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_commands_recorded_total",
				Help: "Command executions recorded",
			},
			[]string{"command", "success"},
		),

		AnalysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_timing_analyses_total",
				Help: "Background timing analyses by outcome",
			},
			[]string{"result"}, // ok, insufficient, failed, timeout, dropped
		),
		AnalysisDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_timing_analysis_duration_seconds",
				Help:    "Duration of background timing analyses",
				Buckets: []float64{.005, .01, .025, .05, .1, .2, .3, .5},
			},
		),
		AnalysisQueue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_timing_analysis_queue_depth",
				Help: "Analyses waiting for a worker",
			},
		),

		SuspicionScore: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_suspicion_score",
				Help:    "Fused suspicion scores",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 100},
			},
			[]string{"recommendation"},
		),
		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_enforcement_decisions_total",
				Help: "Enforcement decisions by action",
			},
			[]string{"action"},
		),
		TrustDeltas: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_trust_deltas_total",
				Help: "Trust score adjustments by direction",
			},
			[]string{"direction"}, // up, down, zero
		),

		UpstreamFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_upstream_failures_total",
				Help: "Signal source failures by source",
			},
			[]string{"source"},
		),
		CircuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warden_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		EventsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_enforcement_events_dropped_total",
				Help: "Enforcement events dropped because the analytics buffer was full",
			},
		),
	}
}

// Direction labels a trust delta for TrustDeltas.
func Direction(delta int) string {
	switch {
	case delta > 0:
		return "up"
	case delta < 0:
		return "down"
	default:
		return "zero"
	}
}
