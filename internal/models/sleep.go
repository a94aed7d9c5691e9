package models

// DateLayout is the calendar date format used for SleepRecord.Date.
const DateLayout = "2006-01-02"

// SleepRecord is one flattened daily sleep measurement.
type SleepRecord struct {
	Timestamp int64   `json:"timestamp"` // ms since epoch, bucket start
	Date      string  `json:"date"`
	Duration  float64 `json:"duration"` // minutes
}

// AnomalyType labels which side of the normal band a record fell on.
type AnomalyType string

const (
	AnomalyHigh AnomalyType = "high"
	AnomalyLow  AnomalyType = "low"
)

// Statistics are the population statistics of one classification run, in minutes.
type Statistics struct {
	AverageDuration float64 `json:"average_duration"`
	StdDuration     float64 `json:"std_duration"`
	UpperThreshold  float64 `json:"upper_threshold"`
	LowerThreshold  float64 `json:"lower_threshold"`
}

// AnomalyReport describes a single out-of-band record.
type AnomalyReport struct {
	Date             string      `json:"date"`
	Duration         float64     `json:"duration"`
	Type             AnomalyType `json:"type"`
	DeviationPercent float64     `json:"deviation"`
	Message          string      `json:"message"`
}

// ClassificationResult is the output of the anomaly classifier.
type ClassificationResult struct {
	Anomalies  []AnomalyReport `json:"anomalies"`
	Statistics Statistics      `json:"statistics"`
	Message    string          `json:"message"`
}
