package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/extract"
	"github.com/claude/sleepbuddy/internal/models"
)

type fakeStore struct {
	rows       []models.SleepRecordRow
	keys       map[rowKey]bool
	records    []models.SleepRecord
	runs       []models.AnalysisRunRow
	runLimit   int
	start, end time.Time
}

type rowKey struct {
	userID int
	start  time.Time
	seq    int
}

// InsertSleepRecords skips rows whose key is already stored, like the
// table's conflict clause.
func (f *fakeStore) InsertSleepRecords(_ context.Context, rows []models.SleepRecordRow) (int64, error) {
	if f.keys == nil {
		f.keys = map[rowKey]bool{}
	}
	var inserted int64
	for _, r := range rows {
		k := rowKey{r.UserID, r.StartTime, r.Seq}
		if f.keys[k] {
			continue
		}
		f.keys[k] = true
		f.rows = append(f.rows, r)
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) QuerySleepRecords(_ context.Context, start, end time.Time, _ int) ([]models.SleepRecord, error) {
	f.start, f.end = start, end
	return f.records, nil
}

func (f *fakeStore) QueryAnalysisRuns(_ context.Context, _, limit int) ([]models.AnalysisRunRow, error) {
	f.runLimit = limit
	return f.runs, nil
}

func (f *fakeStore) GetOrCreateUser(context.Context, string, string) (int, error) {
	return 1, nil
}

func newTestServer(t *testing.T, store Store) *Server {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	det, err := anomaly.NewDetector(anomaly.DefaultThresholdMultiplier)
	if err != nil {
		t.Fatal(err)
	}
	svc := analysis.NewService(det, extract.Extractor{Location: time.UTC}, nil, log)
	return New(store, svc, "key", log)
}

func serve(s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

const fiveDays = `{"bucket":[
	{"startTimeMillis":"1700518400000","dataset":[{"point":[{"value":[{"intVal":27000000}]}]}]},
	{"startTimeMillis":"1700432000000","dataset":[{"point":[{"value":[{"intVal":27000000}]}]}]},
	{"startTimeMillis":"1700345600000","dataset":[{"point":[{"value":[{"intVal":27000000}]}]}]},
	{"startTimeMillis":"1700259200000","dataset":[{"point":[{"value":[{"intVal":27000000}]}]}]},
	{"startTimeMillis":"1700172800000","dataset":[{"point":[{"value":[{"intVal":54000000}]}]}]}
]}`

// TestIngestStoresRecords verifies an authenticated ingest extracts and
// stores one row per day.
func TestIngestStoresRecords(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store)

	rec := serve(s, http.MethodPost, "/api/v1/ingest/", fiveDays, map[string]string{"X-API-Key": "key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["records_received"] != 5 || got["records_inserted"] != 5 {
		t.Errorf("response = %v", got)
	}
	if len(store.rows) != 5 || store.rows[0].Minutes != 450 || store.rows[0].Source != analysis.SourceUpload {
		t.Errorf("rows = %+v", store.rows)
	}
}

// TestIngestRequiresKey verifies ingest is protected by the API key.
func TestIngestRequiresKey(t *testing.T) {
	s := newTestServer(t, &fakeStore{})
	if rec := serve(s, http.MethodPost, "/api/v1/ingest/", fiveDays, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestStoreEndpointsWithoutDatabase verifies record and run endpoints answer
// 503 when no database is configured, while stateless endpoints keep working.
func TestStoreEndpointsWithoutDatabase(t *testing.T) {
	s := newTestServer(t, nil)
	for _, target := range []string{"/api/v1/sleep/records", "/api/v1/sleep/anomalies", "/api/v1/sleep/prompt", "/api/v1/runs"} {
		if rec := serve(s, http.MethodGet, target, "", nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", target, rec.Code)
		}
	}
	if rec := serve(s, http.MethodPost, "/api/v1/ingest/", fiveDays, map[string]string{"X-API-Key": "key"}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ingest: status = %d, want 503", rec.Code)
	}
	if rec := serve(s, http.MethodPost, "/api/v1/analyze", fiveDays, nil); rec.Code != http.StatusOK {
		t.Errorf("analyze: status = %d, want 200", rec.Code)
	}
}

// TestAnalyze verifies the upload analysis returns the classification and
// honors the multiplier override.
func TestAnalyze(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, http.MethodPost, "/api/v1/analyze", fiveDays, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var report analysis.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Result.Anomalies) != 1 || report.Result.Anomalies[0].Type != models.AnomalyHigh {
		t.Errorf("anomalies = %+v, want one high", report.Result.Anomalies)
	}
	if report.Result.Statistics.AverageDuration != 540 {
		t.Errorf("average = %v, want 540", report.Result.Statistics.AverageDuration)
	}

	rec = serve(s, http.MethodPost, "/api/v1/analyze?multiplier=3", fiveDays, nil)
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.ThresholdMultiplier != 3 || len(report.Result.Anomalies) != 0 {
		t.Errorf("multiplier 3: %+v", report)
	}
}

// TestAnalyzeBadInput verifies malformed bodies and multipliers are 400s.
func TestAnalyzeBadInput(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := serve(s, http.MethodPost, "/api/v1/analyze", "{", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: status = %d, want 400", rec.Code)
	}
	for _, m := range []string{"0", "-1", "abc", "NaN"} {
		if rec := serve(s, http.MethodPost, "/api/v1/analyze?multiplier="+m, fiveDays, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("multiplier %s: status = %d, want 400", m, rec.Code)
		}
	}
}

// TestSleepAnomaliesFromStore verifies stored records are classified and the
// date range is passed to the store.
func TestSleepAnomaliesFromStore(t *testing.T) {
	store := &fakeStore{records: []models.SleepRecord{
		{Date: "2024-03-05", Duration: 200},
		{Date: "2024-03-04", Duration: 100},
		{Date: "2024-03-03", Duration: 100},
		{Date: "2024-03-02", Duration: 100},
		{Date: "2024-03-01", Duration: 100},
	}}
	s := newTestServer(t, store)

	rec := serve(s, http.MethodGet, "/api/v1/sleep/anomalies?start=2024-03-01&end=2024-03-05", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var report analysis.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Source != analysis.SourceStored || len(report.Result.Anomalies) != 1 {
		t.Errorf("report = %+v", report)
	}
	if want := time.Date(2024, 3, 6, 0, 0, 0, 0, time.Local); !store.end.Equal(want) {
		t.Errorf("end = %v, want inclusive end %v", store.end, want)
	}
}

// TestSleepPrompt verifies the prompt endpoint embeds the stats block.
func TestSleepPrompt(t *testing.T) {
	store := &fakeStore{records: []models.SleepRecord{{Date: "2024-03-01", Duration: 420}}}
	s := newTestServer(t, store)

	rec := serve(s, http.MethodGet, "/api/v1/sleep/prompt", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Prompt, "Average Sleep Duration: 420.00 minutes") {
		t.Errorf("prompt = %q", got.Prompt)
	}
}

// TestSampleEndpoint verifies the synthetic flow is reproducible through the
// seed parameter and validates its inputs.
func TestSampleEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, http.MethodGet, "/api/v1/sample?seed=3&days=10&anomalies=3&multipliers=2.2,0.2,3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var report analysis.SampleReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Seed != 3 || len(report.Records) != 10 || len(report.Injections) != 3 {
		t.Errorf("seed = %d, records = %d, injections = %d", report.Seed, len(report.Records), len(report.Injections))
	}
	if len(report.Dataset.Bucket) != 10 {
		t.Errorf("dataset buckets = %d, want 10", len(report.Dataset.Bucket))
	}

	for _, q := range []string{"days=0", "days=x", "days=3651", "days=2000000000", "std_hours=-1", "anomalies=-1", "multipliers=1,0", "seed=-4", "multiplier=0"} {
		if rec := serve(s, http.MethodGet, "/api/v1/sample?"+q, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

// TestSampleRequestDefaults verifies unset parameters keep the configured
// defaults and an empty multipliers list switches to random multipliers.
func TestSampleRequestDefaults(t *testing.T) {
	defaults := analysis.DefaultSampleRequest()
	req, err := sampleRequest(url.Values{}, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if req.Baseline != defaults.Baseline || req.Inject.NumAnomalies != 2 || len(req.Inject.Multipliers) != 2 {
		t.Errorf("req = %+v", req)
	}
	if req.Seed != nil {
		t.Error("seed should stay random")
	}

	req, err = sampleRequest(url.Values{"multipliers": {""}}, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if req.Inject.Multipliers != nil {
		t.Errorf("multipliers = %v, want nil", req.Inject.Multipliers)
	}
}

// TestRunsLimit verifies the limit parameter with its default.
func TestRunsLimit(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(t, store)

	serve(s, http.MethodGet, "/api/v1/runs", "", nil)
	if store.runLimit != 50 {
		t.Errorf("default limit = %d, want 50", store.runLimit)
	}
	serve(s, http.MethodGet, "/api/v1/runs?limit=5", "", nil)
	if store.runLimit != 5 {
		t.Errorf("limit = %d, want 5", store.runLimit)
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when Tailscale is not enabled.
func TestHandleMeDefault(t *testing.T) {
	s := newTestServer(t, nil)
	rec := serve(s, http.MethodGet, "/api/v1/me", "", nil)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" || info.DisplayName != "Local Dev User" {
		t.Errorf("info = %+v", info)
	}
}

// TestParseTimeRange verifies defaults, date-only ends and rejection of
// inverted ranges.
func TestParseTimeRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?end=2024-03-10T00:00:00Z", nil)
	start, end, err := parseTimeRange(req, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got := end.Sub(start); got != 7*24*time.Hour {
		t.Errorf("window = %v, want 7 days", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?start=2024-03-10&end=2024-03-01", nil)
	if _, _, err := parseTimeRange(req, 7); err == nil {
		t.Error("expected error for inverted range")
	}

	req = httptest.NewRequest(http.MethodGet, "/?start=yesterday", nil)
	if _, _, err := parseTimeRange(req, 7); err == nil {
		t.Error("expected error for malformed start")
	}
}

// TestParseTimeRangeLocalDates verifies date-only bounds are local calendar
// days, so a record extracted in the local zone falls inside the range its
// own date names.
func TestParseTimeRangeLocalDates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2024-03-01&end=2024-03-05", nil)
	start, end, err := parseTimeRange(req, 7)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 3, 6, 0, 0, 0, 0, time.Local); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	// A local 00:30 bucket start on the first day is inside the range.
	ts := time.Date(2024, 3, 1, 0, 30, 0, 0, time.Local).UnixMilli()
	rec := extract.Extractor{}.Extract(extract.Wrap(map[string]any{
		"bucket": []any{map[string]any{
			"startTimeMillis": strconv.FormatInt(ts, 10),
			"dataset":         []any{map[string]any{"point": []any{map[string]any{"value": []any{map[string]any{"intVal": float64(60000)}}}}}},
		}},
	}))
	if len(rec) != 1 || rec[0].Date != "2024-03-01" {
		t.Fatalf("records = %+v", rec)
	}
	if got := time.UnixMilli(rec[0].Timestamp); got.Before(start) || !got.Before(end) {
		t.Errorf("record at %v outside [%v, %v)", got, start, end)
	}
}

// TestMount verifies extra handlers are reachable through the router.
func TestMount(t *testing.T) {
	s := newTestServer(t, nil)
	s.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	if rec := serve(s, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}

// TestSampleRequestRejectsOversizedDays verifies day counts above the
// generator limit are refused before any data is generated.
func TestSampleRequestRejectsOversizedDays(t *testing.T) {
	defaults := analysis.DefaultSampleRequest()
	for _, days := range []string{"3651", "2000000000"} {
		if _, err := sampleRequest(url.Values{"days": {days}}, defaults); err == nil {
			t.Errorf("days=%s accepted", days)
		}
	}
	req, err := sampleRequest(url.Values{"days": {"3650"}}, defaults)
	if err != nil || req.Baseline.Days != 3650 {
		t.Errorf("days=3650: req = %+v, err = %v", req.Baseline, err)
	}
}

// TestIngestKeepsEveryPointOfABucket verifies a bucket with several points is
// stored in full, so stored-record analysis matches analysis of the payload,
// and that re-sending the payload inserts nothing.
func TestIngestKeepsEveryPointOfABucket(t *testing.T) {
	const multiPoint = `{"bucket":[
		{"startTimeMillis":"1700518400000","dataset":[{"point":[
			{"value":[{"intVal":18000000}]},
			{"value":[{"intVal":9000000}]}
		]}]},
		{"startTimeMillis":"1700432000000","dataset":[{"point":[{"value":[{"intVal":27000000}]}]}]}
	]}`
	store := &fakeStore{}
	s := newTestServer(t, store)
	key := map[string]string{"X-API-Key": "key"}

	rec := serve(s, http.MethodPost, "/api/v1/ingest/", multiPoint, key)
	var got map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["records_received"] != 3 || got["records_inserted"] != 3 {
		t.Errorf("first ingest = %v, want 3 received and inserted", got)
	}

	rec = serve(s, http.MethodPost, "/api/v1/ingest/", multiPoint, key)
	got = nil
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["records_inserted"] != 0 {
		t.Errorf("second ingest inserted %d, want 0", got["records_inserted"])
	}

	for _, row := range store.rows {
		store.records = append(store.records, row.Record())
	}
	rec = serve(s, http.MethodGet, "/api/v1/sleep/anomalies", "", nil)
	var stored analysis.Report
	if err := json.NewDecoder(rec.Body).Decode(&stored); err != nil {
		t.Fatal(err)
	}
	rec = serve(s, http.MethodPost, "/api/v1/analyze", multiPoint, nil)
	var direct analysis.Report
	if err := json.NewDecoder(rec.Body).Decode(&direct); err != nil {
		t.Fatal(err)
	}
	if stored.Result.Statistics != direct.Result.Statistics {
		t.Errorf("stored stats %+v differ from payload stats %+v", stored.Result.Statistics, direct.Result.Statistics)
	}
}
