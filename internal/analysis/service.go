// Package analysis wires extraction, classification and synthetic data into
// the end-to-end sleep analysis flow.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/config"
	"github.com/claude/sleepbuddy/internal/extract"
	"github.com/claude/sleepbuddy/internal/metrics"
	"github.com/claude/sleepbuddy/internal/models"
	"github.com/claude/sleepbuddy/internal/synth"
	"github.com/google/uuid"
)

// Analysis sources, used for metrics labels and the run log.
const (
	SourceUpload = "upload"
	SourceStored = "stored"
	SourceSample = "sample"
)

// RunStore persists the run log. *storage.DB satisfies it.
type RunStore interface {
	InsertAnalysisRun(ctx context.Context, run models.AnalysisRunRow) error
}

// Service runs analyses. It is safe for concurrent use.
type Service struct {
	detector  *anomaly.Detector
	extractor extract.Extractor
	runs      RunStore
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. runs may be nil, in which case runs are not
// recorded.
func NewService(detector *anomaly.Detector, extractor extract.Extractor, runs RunStore, log *slog.Logger) *Service {
	return &Service{
		detector:  detector,
		extractor: extractor,
		runs:      runs,
		log:       log,
		now:       time.Now,
	}
}

// Input describes one analysis request. A zero ThresholdMultiplier uses the
// service's detector.
type Input struct {
	Source              string
	UserID              int
	ThresholdMultiplier float64
}

// Report is the outcome of one analysis.
type Report struct {
	RunID               uuid.UUID                   `json:"run_id"`
	Source              string                      `json:"source"`
	ThresholdMultiplier float64                     `json:"threshold_multiplier"`
	Records             []models.SleepRecord        `json:"records"`
	Result              models.ClassificationResult `json:"result"`
}

// AnalyzeRecords classifies already-extracted records.
func (s *Service) AnalyzeRecords(ctx context.Context, in Input, records []models.SleepRecord) (*Report, error) {
	det, err := s.detectorFor(in.ThresholdMultiplier)
	if err != nil {
		return nil, err
	}

	start := s.now()
	result := det.Detect(records)
	elapsed := s.now().Sub(start)

	outcome := metrics.OutcomeSuccess
	if len(records) == 0 {
		outcome = metrics.OutcomeInsufficient
	}
	metrics.ObserveAnalysis(in.Source, outcome, len(records), elapsed)
	for _, a := range result.Anomalies {
		metrics.ObserveAnomaly(string(a.Type))
	}

	report := &Report{
		RunID:               uuid.New(),
		Source:              in.Source,
		ThresholdMultiplier: det.ThresholdMultiplier(),
		Records:             records,
		Result:              result,
	}
	s.log.Info("sleep analysis",
		"run_id", report.RunID,
		"source", in.Source,
		"records", len(records),
		"anomalies", len(result.Anomalies),
		"average_min", result.Statistics.AverageDuration,
	)

	s.recordRun(ctx, in, report, start, elapsed)
	return report, nil
}

// AnalyzeJSON extracts records from a raw aggregate response and classifies them.
func (s *Service) AnalyzeJSON(ctx context.Context, in Input, r io.Reader) (*Report, error) {
	records, err := s.extractor.ExtractJSON(r)
	if err != nil {
		metrics.ObserveAnalysis(in.Source, metrics.OutcomeError, 0, 0)
		return nil, err
	}
	return s.AnalyzeRecords(ctx, in, records)
}

// AnalyzeDataset extracts records from a typed dataset and classifies them.
func (s *Service) AnalyzeDataset(ctx context.Context, in Input, ds models.FitDataset) (*Report, error) {
	records, err := s.extractor.ExtractDataset(ds)
	if err != nil {
		metrics.ObserveAnalysis(in.Source, metrics.OutcomeError, 0, 0)
		return nil, err
	}
	return s.AnalyzeRecords(ctx, in, records)
}

// Extract exposes the service's extractor for callers that store records.
func (s *Service) Extract(r io.Reader) ([]models.SleepRecord, error) {
	return s.extractor.ExtractJSON(r)
}

// SampleRequest configures the synthetic flow. A nil Seed picks a random one,
// which is reported back so the run can be reproduced.
type SampleRequest struct {
	Baseline            synth.BaselineOptions
	Inject              synth.InjectOptions
	Seed                *uint64
	UserID              int
	ThresholdMultiplier float64
}

// DefaultSampleRequest mirrors the reference scenario: a week, two anomalies
// (x2.0 and x0.1).
func DefaultSampleRequest() SampleRequest {
	return SampleRequest{
		Baseline: synth.DefaultBaselineOptions(),
		Inject: synth.InjectOptions{
			NumAnomalies: 2,
			Multipliers:  synth.DefaultAnomalyMultipliers(),
		},
	}
}

// SampleReport is a Report plus the synthetic data behind it.
type SampleReport struct {
	Report
	Seed       uint64            `json:"seed"`
	Baseline   models.FitDataset `json:"-"`
	Dataset    models.FitDataset `json:"dataset"`
	Injections []synth.Injection `json:"injections"`
}

// Sample generates a baseline, injects anomalies into a copy of it, and
// analyzes the copy.
func (s *Service) Sample(ctx context.Context, req SampleRequest) (*SampleReport, error) {
	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}
	gen := synth.New(seed)

	base, err := gen.Baseline(req.Baseline, s.now())
	if err != nil {
		return nil, fmt.Errorf("generating baseline: %w", err)
	}
	data, injections := gen.Inject(base, req.Inject)
	s.log.Debug("synthetic sleep data", "seed", seed, "days", len(data.Bucket), "injections", len(injections))

	report, err := s.AnalyzeDataset(ctx, Input{
		Source:              SourceSample,
		UserID:              req.UserID,
		ThresholdMultiplier: req.ThresholdMultiplier,
	}, data)
	if err != nil {
		return nil, err
	}
	return &SampleReport{
		Report:     *report,
		Seed:       seed,
		Baseline:   base,
		Dataset:    data,
		Injections: injections,
	}, nil
}

func (s *Service) detectorFor(multiplier float64) (*anomaly.Detector, error) {
	if multiplier == 0 || multiplier == s.detector.ThresholdMultiplier() {
		return s.detector, nil
	}
	return anomaly.NewDetector(multiplier)
}

// recordRun writes the run log entry. Failures are logged, never returned:
// the analysis itself already succeeded.
func (s *Service) recordRun(ctx context.Context, in Input, r *Report, start time.Time, elapsed time.Duration) {
	if s.runs == nil {
		return
	}
	row := models.AnalysisRunRow{
		ID:                  r.RunID,
		UserID:              in.UserID,
		CreatedAt:           start,
		Source:              in.Source,
		RecordCount:         len(r.Records),
		AnomalyCount:        len(r.Result.Anomalies),
		ThresholdMultiplier: r.ThresholdMultiplier,
		Statistics:          r.Result.Statistics,
		Message:             r.Result.Message,
		DurationMs:          int(elapsed.Milliseconds()),
	}
	if err := s.runs.InsertAnalysisRun(ctx, row); err != nil {
		s.log.Warn("failed to record analysis run", "run_id", r.RunID, "error", err)
	}
}

// SampleRequestFromConfig converts the configured sample defaults.
func SampleRequestFromConfig(c config.SampleConfig) SampleRequest {
	req := SampleRequest{
		Baseline: synth.BaselineOptions{
			Days:           c.Days,
			BaseSleepHours: c.BaseSleepHours,
			StdDevHours:    c.StdDevHours,
		},
		Inject: synth.InjectOptions{
			NumAnomalies: c.NumAnomalies,
			Multipliers:  slices.Clone(c.AnomalyMultipliers),
		},
	}
	if c.Seed != nil {
		seed := *c.Seed
		req.Seed = &seed
	}
	return req
}
