package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/synth"
)

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	req, err := sampleRequest(r.URL.Query(), s.sample)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	req.UserID = userIDFromContext(r)

	report, err := s.analysis.Sample(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, synth.ErrInvalidDays) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// sampleRequest applies query parameter overrides to the configured defaults:
// days, base_hours, std_hours, anomalies, multipliers (comma list), seed and
// multiplier (classification threshold).
func sampleRequest(q url.Values, defaults analysis.SampleRequest) (analysis.SampleRequest, error) {
	req := defaults
	req.Inject.Multipliers = slices.Clone(defaults.Inject.Multipliers)

	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 || days > synth.MaxDays {
			return req, fmt.Errorf("invalid days %q", v)
		}
		req.Baseline.Days = days
	}
	if v := q.Get("base_hours"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h <= 0 {
			return req, fmt.Errorf("invalid base_hours %q", v)
		}
		req.Baseline.BaseSleepHours = h
	}
	if v := q.Get("std_hours"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h < 0 {
			return req, fmt.Errorf("invalid std_hours %q", v)
		}
		req.Baseline.StdDevHours = h
	}
	if v := q.Get("anomalies"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid anomalies %q", v)
		}
		req.Inject.NumAnomalies = n
	}
	if q.Has("multipliers") {
		m, err := synth.ParseMultipliers(q.Get("multipliers"))
		if err != nil {
			return req, err
		}
		req.Inject.Multipliers = m
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid seed %q", v)
		}
		req.Seed = &seed
	}
	if v := q.Get("multiplier"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil || m <= 0 {
			return req, fmt.Errorf("invalid multiplier %q", v)
		}
		req.ThresholdMultiplier = m
	}
	return req, nil
}
