package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRegisterTwice verifies registering against the same registry is
// idempotent, so tests and mains can both call Register.
func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

// TestObserveAnalysisCounts verifies the outcome label is normalized and the
// counter moves.
func TestObserveAnalysisCounts(t *testing.T) {
	before := testutil.ToFloat64(analysesTotal.WithLabelValues("test", OutcomeSuccess))
	ObserveAnalysis("test", "something-else", 7, time.Millisecond)
	ObserveAnalysis("test", OutcomeSuccess, 7, -time.Second)
	after := testutil.ToFloat64(analysesTotal.WithLabelValues("test", OutcomeSuccess))
	if after-before != 2 {
		t.Errorf("success count moved by %v, want 2", after-before)
	}
}

// TestObserveAnomaly verifies anomaly counting per type.
func TestObserveAnomaly(t *testing.T) {
	before := testutil.ToFloat64(anomaliesTotal.WithLabelValues("low"))
	ObserveAnomaly("low")
	if got := testutil.ToFloat64(anomaliesTotal.WithLabelValues("low")) - before; got != 1 {
		t.Errorf("low count moved by %v, want 1", got)
	}
}
