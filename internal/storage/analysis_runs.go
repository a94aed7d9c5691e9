package storage

import (
	"context"
	"fmt"

	"github.com/claude/sleepbuddy/internal/models"
)

// InsertAnalysisRun appends one entry to the analysis run log.
func (db *DB) InsertAnalysisRun(ctx context.Context, run models.AnalysisRunRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, user_id, created_at, source, record_count, anomaly_count,
		 threshold_multiplier, average_duration, std_duration, upper_threshold, lower_threshold,
		 message, duration_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		run.ID, run.UserID, run.CreatedAt, run.Source, run.RecordCount, run.AnomalyCount,
		run.ThresholdMultiplier, run.Statistics.AverageDuration, run.Statistics.StdDuration,
		run.Statistics.UpperThreshold, run.Statistics.LowerThreshold,
		run.Message, run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("inserting analysis run %s: %w", run.ID, err)
	}
	return nil
}

// QueryAnalysisRuns returns the most recent analysis runs for a user.
func (db *DB) QueryAnalysisRuns(ctx context.Context, userID, limit int) ([]models.AnalysisRunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, source, record_count, anomaly_count,
		 threshold_multiplier, average_duration, std_duration, upper_threshold, lower_threshold,
		 message, duration_ms
		 FROM analysis_runs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying analysis runs: %w", err)
	}
	defer rows.Close()

	result := []models.AnalysisRunRow{}
	for rows.Next() {
		var r models.AnalysisRunRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.CreatedAt, &r.Source, &r.RecordCount, &r.AnomalyCount,
			&r.ThresholdMultiplier, &r.Statistics.AverageDuration, &r.Statistics.StdDuration,
			&r.Statistics.UpperThreshold, &r.Statistics.LowerThreshold,
			&r.Message, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning analysis run: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
