package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQuerySleepRecords verifies the HTTP client sends the time range and
// parses the record array.
func TestQuerySleepRecords(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sleep/records": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got != "2026-01-01T00:00:00Z" {
				t.Errorf("start=%q", got)
			}
			if got := r.URL.Query().Get("end"); got != "2026-01-07T00:00:00Z" {
				t.Errorf("end=%q", got)
			}
			writeTestJSON(t, w, []models.SleepRecord{
				{Timestamp: 1767571200000, Date: "2026-01-05", Duration: 431},
				{Timestamp: 1767484800000, Date: "2026-01-04", Duration: 402.5},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL + "/")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	records, err := client.QuerySleepRecords(context.Background(), start, end, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Date != "2026-01-05" || records[1].Duration != 402.5 {
		t.Errorf("records = %+v", records)
	}
}

// TestHTTPClientErrorStatus verifies non-200 responses surface as errors
// carrying the server message.
func TestHTTPClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sleep/records": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"no database configured"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).QuerySleepRecords(context.Background(), time.Now().Add(-time.Hour), time.Now(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
}

// TestHTTPClientBadJSON verifies undecodable bodies are reported.
func TestHTTPClientBadJSON(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sleep/records": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).QuerySleepRecords(context.Background(), time.Now().Add(-time.Hour), time.Now(), 1)
	if err == nil {
		t.Fatal("expected decode error")
	}
}
