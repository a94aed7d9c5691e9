// Package extract flattens fitness aggregate responses into daily sleep records.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
)

const msPerMinute = 1000 * 60

// Extractor converts bucketed sleep data into SleepRecords. The zero value
// formats dates in the local time zone.
type Extractor struct {
	// Location is used to derive calendar dates. Nil means time.Local.
	Location *time.Location
}

// Extract walks bucket -> dataset -> point and emits one record per point
// that has at least one value entry. Buckets, datasets or points with missing
// fields are skipped; an input without buckets yields an empty slice.
func (e Extractor) Extract(root Node) []models.SleepRecord {
	records := []models.SleepRecord{}
	for _, bucket := range root.Get("bucket").Items() {
		ts, ok := bucket.Get("startTimeMillis").Int64()
		if !ok {
			continue
		}
		date := time.UnixMilli(ts).In(e.location()).Format(models.DateLayout)
		for _, dataset := range bucket.Get("dataset").Items() {
			for _, point := range dataset.Get("point").Items() {
				ms, ok := pointMillis(point)
				if !ok {
					continue
				}
				records = append(records, models.SleepRecord{
					Timestamp: ts,
					Date:      date,
					Duration:  float64(ms) / msPerMinute,
				})
			}
		}
	}
	return records
}

// ExtractJSON decodes a raw aggregate response and extracts its records.
func (e Extractor) ExtractJSON(r io.Reader) ([]models.SleepRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding sleep data: %w", err)
	}
	return e.Extract(Wrap(v)), nil
}

// ExtractDataset extracts records from a typed dataset, such as one built by
// the synthetic generator.
func (e Extractor) ExtractDataset(ds models.FitDataset) ([]models.SleepRecord, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return e.ExtractJSON(bytes.NewReader(data))
}

// pointMillis reads the duration of a point from its first value entry. An
// entry without intVal counts as zero; an unreadable or negative intVal
// drops the point.
func pointMillis(point Node) (int64, bool) {
	entry := point.Get("value").First()
	if !entry.Present() {
		return 0, false
	}
	v := entry.Get("intVal")
	if !v.Present() {
		return 0, true
	}
	ms, ok := v.Int64()
	if !ok || ms < 0 {
		return 0, false
	}
	return ms, true
}

func (e Extractor) location() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}
