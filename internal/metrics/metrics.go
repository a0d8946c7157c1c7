package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed analysis passes.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analysis passes.
	OutcomeError = "error"

	// SuppressSignificance labels candidates dropped by the significance gates.
	SuppressSignificance = "significance"
	// SuppressCooldown labels candidates dropped by a per-type cooldown.
	SuppressCooldown = "cooldown"
	// SuppressSessionCap labels candidates dropped by the session alert cap.
	SuppressSessionCap = "session_cap"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csaw",
			Name:      "analyses_total",
			Help:      "Total number of analysis passes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "csaw",
			Name:      "analysis_seconds",
			Help:      "Analysis pass latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	alertsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csaw",
			Name:      "alerts_emitted_total",
			Help:      "Accepted smart pings, partitioned by ping type.",
		},
		[]string{"type"},
	)

	alertsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csaw",
			Name:      "alerts_suppressed_total",
			Help:      "Candidate smart pings dropped by the filter, partitioned by reason.",
		},
		[]string{"reason"},
	)

	enhancerFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "csaw",
			Name:      "enhancer_fallbacks_total",
			Help:      "Analysis passes that fell back to heuristics after an enhancer failure.",
		},
	)
)

// Register attaches the engine collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		alertsEmittedTotal,
		alertsSuppressedTotal,
		enhancerFallbacksTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one analysis pass duration and outcome.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveAlert counts one accepted smart ping.
func ObserveAlert(pingType string) {
	alertsEmittedTotal.WithLabelValues(pingType).Inc()
}

// ObserveSuppression counts one filtered-out candidate ping.
func ObserveSuppression(reason string) {
	alertsSuppressedTotal.WithLabelValues(reason).Inc()
}

// ObserveEnhancerFallback counts one heuristic fallback.
func ObserveEnhancerFallback() {
	enhancerFallbacksTotal.Inc()
}
