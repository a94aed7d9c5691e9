// Package anomaly flags unusually long or short sleep days using a
// mean ± k·σ band over the whole record set.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/claude/sleepbuddy/internal/models"
)

// DefaultThresholdMultiplier is the band width, in standard deviations,
// used when nothing else is configured.
const DefaultThresholdMultiplier = 1.5

// MessageInsufficientData is the result message for an empty record set.
const MessageInsufficientData = "Insufficient data for anomaly detection"

// ErrInvalidMultiplier is returned for a non-positive or non-finite multiplier.
var ErrInvalidMultiplier = errors.New("threshold multiplier must be a positive finite number")

// Detector classifies sleep records. It holds no mutable state and is safe
// for concurrent use.
type Detector struct {
	multiplier float64
}

// NewDetector returns a Detector using the given threshold multiplier.
func NewDetector(thresholdMultiplier float64) (*Detector, error) {
	if err := ValidateMultiplier(thresholdMultiplier); err != nil {
		return nil, err
	}
	return &Detector{multiplier: thresholdMultiplier}, nil
}

// ValidateMultiplier reports whether m can be used as a threshold multiplier.
func ValidateMultiplier(m float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidMultiplier, m)
	}
	return nil
}

// ThresholdMultiplier returns the configured band width.
func (d *Detector) ThresholdMultiplier() float64 { return d.multiplier }

// Detect computes population statistics over records and reports every
// record strictly outside [lower, upper]. An empty input is not an error: it
// yields zero statistics and MessageInsufficientData.
func (d *Detector) Detect(records []models.SleepRecord) models.ClassificationResult {
	if len(records) == 0 {
		return models.ClassificationResult{
			Anomalies: []models.AnomalyReport{},
			Message:   MessageInsufficientData,
		}
	}

	durations := make([]float64, len(records))
	for i, r := range records {
		durations[i] = r.Duration
	}
	avg, std := meanStd(durations)

	stats := models.Statistics{
		AverageDuration: avg,
		StdDuration:     std,
		UpperThreshold:  avg + d.multiplier*std,
		LowerThreshold:  avg - d.multiplier*std,
	}

	anomalies := []models.AnomalyReport{}
	for _, r := range records {
		var typ models.AnomalyType
		switch {
		case r.Duration > stats.UpperThreshold:
			typ = models.AnomalyHigh
		case r.Duration < stats.LowerThreshold:
			typ = models.AnomalyLow
		default:
			continue
		}
		deviation := deviationPercent(r.Duration, avg)
		anomalies = append(anomalies, models.AnomalyReport{
			Date:             r.Date,
			Duration:         r.Duration,
			Type:             typ,
			DeviationPercent: deviation,
			Message:          anomalyMessage(typ, r.Date, r.Duration, deviation),
		})
	}

	return models.ClassificationResult{
		Anomalies:  anomalies,
		Statistics: stats,
		Message:    fmt.Sprintf("Found %d anomalies in the sleep data", len(anomalies)),
	}
}

// meanStd returns the arithmetic mean and the population standard deviation.
func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var sq float64
	for _, v := range values {
		diff := v - mean
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / n)
}

// deviationPercent is the signed distance from avg as a percentage of avg.
// A zero average has no meaningful relative deviation and reports 0.
func deviationPercent(duration, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	return (duration - avg) / avg * 100
}

func anomalyMessage(typ models.AnomalyType, date string, duration, deviation float64) string {
	label := string(typ)
	label = strings.ToUpper(label[:1]) + label[1:]
	return fmt.Sprintf("%s sleep duration on %s: %.2f minutes (%+.1f%% from average)",
		label, date, duration, deviation)
}
