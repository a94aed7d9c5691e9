package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced statistics.
	OutcomeSuccess = "success"
	// OutcomeInsufficient labels analyses that had no records to work with.
	OutcomeInsufficient = "insufficient_data"
	// OutcomeError labels analyses whose input could not be read.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepbuddy",
			Name:      "analyses_total",
			Help:      "Total number of sleep analyses, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleepbuddy",
			Name:      "anomalies_detected_total",
			Help:      "Anomalous sleep days reported, partitioned by type.",
		},
		[]string{"type"},
	)

	recordsAnalyzed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sleepbuddy",
			Name:      "analysis_records",
			Help:      "Number of sleep records per analysis.",
			Buckets:   []float64{0, 1, 7, 14, 30, 90, 365, 1000},
		},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sleepbuddy",
			Name:      "analysis_seconds",
			Help:      "Analysis latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
)

// Register attaches sleepbuddy collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		anomaliesTotal,
		recordsAnalyzed,
		analysisDurationSeconds,
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

// ObserveAnalysis records one analysis run.
func ObserveAnalysis(source, outcome string, records int, duration time.Duration) {
	switch outcome {
	case OutcomeSuccess, OutcomeInsufficient, OutcomeError:
	default:
		outcome = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(source, outcome).Inc()
	recordsAnalyzed.Observe(float64(records))
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveAnomaly counts one reported anomaly of the given type.
func ObserveAnomaly(anomalyType string) {
	anomaliesTotal.WithLabelValues(anomalyType).Inc()
}
