package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SleepRecordRow is a row ready for insertion into the sleep_records table.
// Seq numbers the records sharing one bucket start, in input order, so
// multi-point buckets keep every point.
type SleepRecordRow struct {
	UserID    int
	StartTime time.Time
	Seq       int
	Date      time.Time
	Minutes   float64
	Source    string
}

// SleepRecordRows converts extracted records into storage rows.
func SleepRecordRows(userID int, source string, records []SleepRecord) ([]SleepRecordRow, error) {
	rows := make([]SleepRecordRow, 0, len(records))
	seq := make(map[int64]int)
	for _, r := range records {
		date, err := time.Parse(DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("record at %d: bad date %q: %w", r.Timestamp, r.Date, err)
		}
		rows = append(rows, SleepRecordRow{
			UserID:    userID,
			StartTime: time.UnixMilli(r.Timestamp).UTC(),
			Seq:       seq[r.Timestamp],
			Date:      date,
			Minutes:   r.Duration,
			Source:    source,
		})
		seq[r.Timestamp]++
	}
	return rows, nil
}

// Record converts a stored row back into a SleepRecord.
func (r SleepRecordRow) Record() SleepRecord {
	return SleepRecord{
		Timestamp: r.StartTime.UnixMilli(),
		Date:      r.Date.Format(DateLayout),
		Duration:  r.Minutes,
	}
}

// AnalysisRunRow is a row for the analysis_runs table: the outcome of one
// classification, kept as an audit log.
type AnalysisRunRow struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              int        `json:"user_id"`
	CreatedAt           time.Time  `json:"created_at"`
	Source              string     `json:"source"`
	RecordCount         int        `json:"record_count"`
	AnomalyCount        int        `json:"anomaly_count"`
	ThresholdMultiplier float64    `json:"threshold_multiplier"`
	Statistics          Statistics `json:"statistics"`
	Message             string     `json:"message"`
	DurationMs          int        `json:"duration_ms"`
}
