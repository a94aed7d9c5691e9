package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/models"
	"github.com/claude/sleepbuddy/internal/prompt"
)

var errNoStore = errors.New("no database configured")

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	records, err := s.analysis.Extract(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	rows, err := models.SleepRecordRows(userIDFromContext(r), analysis.SourceUpload, records)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	inserted, err := s.store.InsertSleepRecords(r.Context(), rows)
	if err != nil {
		s.log.Error("ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"records_received": int64(len(records)),
		"records_inserted": inserted,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	multiplier, err := parseMultiplier(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := s.analysis.AnalyzeJSON(r.Context(), analysis.Input{
		Source:              analysis.SourceUpload,
		UserID:              userIDFromContext(r),
		ThresholdMultiplier: multiplier,
	}, r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSleepRecords(w http.ResponseWriter, r *http.Request) {
	records, ok := s.storedRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSleepAnomalies(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyzeStored(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSleepPrompt(w http.ResponseWriter, r *http.Request) {
	report, ok := s.analyzeStored(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prompt": prompt.Sleep(report.Result),
		"result": report.Result,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	runs, err := s.store.QueryAnalysisRuns(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) storedRecords(w http.ResponseWriter, r *http.Request) ([]models.SleepRecord, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	start, end, err := parseTimeRange(r, s.windowDays)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	records, err := s.store.QuerySleepRecords(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return records, true
}

func (s *Server) analyzeStored(w http.ResponseWriter, r *http.Request) (*analysis.Report, bool) {
	multiplier, err := parseMultiplier(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	records, ok := s.storedRecords(w, r)
	if !ok {
		return nil, false
	}
	report, err := s.analysis.AnalyzeRecords(r.Context(), analysis.Input{
		Source:              analysis.SourceStored,
		UserID:              userIDFromContext(r),
		ThresholdMultiplier: multiplier,
	}, records)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	return report, true
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": errNoStore.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseMultiplier reads the optional ?multiplier= override. Zero means the
// configured default.
func parseMultiplier(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("multiplier")
	if v == "" {
		return 0, nil
	}
	m, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid multiplier %q", v)
	}
	if err := anomaly.ValidateMultiplier(m); err != nil {
		return 0, err
	}
	return m, nil
}

// parseTimeRange reads start/end as RFC 3339 or YYYY-MM-DD. Dates are local
// calendar days, matching SleepRecord.Date, and a date-only end is inclusive.
// Without a start the range is the last windowDays days.
func parseTimeRange(r *http.Request, windowDays int) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.ParseInLocation(models.DateLayout, endStr, time.Local)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q", endStr)
			}
			end = end.AddDate(0, 0, 1)
		}
	}

	if startStr == "" {
		start = end.AddDate(0, 0, -windowDays)
		return
	}
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.ParseInLocation(models.DateLayout, startStr, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q", startStr)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be before end")
	}
	return
}
