package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
)

// maxRowsPerInsert keeps a batch below PostgreSQL's 65535 bind parameter limit.
const maxRowsPerInsert = 1000

const sleepRecordColumns = 6

// InsertSleepRecords batch-inserts sleep records. A record already stored for
// the same user, bucket start and sequence number is skipped, so re-sending a
// payload is idempotent. Returns count inserted.
func (db *DB) InsertSleepRecords(ctx context.Context, rows []models.SleepRecordRow) (int64, error) {
	var inserted int64
	for start := 0; start < len(rows); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(rows))
		query, args := sleepRecordInsert(rows[start:end])
		tag, err := db.Pool.Exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("inserting sleep records: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func sleepRecordInsert(rows []models.SleepRecordRow) (string, []any) {
	args := make([]any, 0, len(rows)*sleepRecordColumns)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * sleepRecordColumns
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, r.UserID, r.StartTime, r.Seq, r.Date, r.Minutes, r.Source)
	}

	query := `INSERT INTO sleep_records (user_id, start_time, seq, date, minutes, source) VALUES ` +
		strings.Join(valueStrings, ",") +
		" ON CONFLICT (user_id, start_time, seq) DO NOTHING"
	return query, args
}

// QuerySleepRecords retrieves sleep records whose bucket starts in
// [start, end), newest first.
func (db *DB) QuerySleepRecords(ctx context.Context, start, end time.Time, userID int) ([]models.SleepRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT user_id, start_time, seq, date, minutes, source
		 FROM sleep_records
		 WHERE start_time >= $1 AND start_time < $2 AND user_id = $3
		 ORDER BY start_time DESC, seq`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sleep records: %w", err)
	}
	defer rows.Close()

	result := []models.SleepRecord{}
	for rows.Next() {
		var r models.SleepRecordRow
		if err := rows.Scan(&r.UserID, &r.StartTime, &r.Seq, &r.Date, &r.Minutes, &r.Source); err != nil {
			return nil, fmt.Errorf("scanning sleep record: %w", err)
		}
		result = append(result, r.Record())
	}
	return result, rows.Err()
}
