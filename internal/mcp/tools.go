package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/models"
	"github.com/claude/sleepbuddy/internal/synth"
	"github.com/mark3labs/mcp-go/mcp"
)

var errNoDataSource = errors.New("no sleep record store configured")

// defaultTimeRange returns start/end defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.ParseInLocation(models.DateLayout, s, time.Local)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolDetectSleepAnomalies = mcp.NewTool("detect_sleep_anomalies",
	mcp.WithDescription("Classify stored nightly sleep durations. Nights outside average ± multiplier × standard deviation are reported as high or low anomalies with their deviation from the average."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the analysis window.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithNumber("threshold_multiplier", mcp.Description("Width of the normal band in standard deviations. Defaults to the server setting (1.5).")),
)

var toolGenerateSampleSleepData = mcp.NewTool("generate_sample_sleep_data",
	mcp.WithDescription("Generate synthetic daily sleep data, inject anomalies into random days (never the most recent one), and classify the result. Returns the dataset, the injected days and the detected anomalies."),
	mcp.WithNumber("days", mcp.Description("Number of days to generate. Defaults to 7.")),
	mcp.WithNumber("base_sleep_hours", mcp.Description("Mean nightly sleep in hours. Defaults to 7.5.")),
	mcp.WithNumber("std_dev_hours", mcp.Description("Standard deviation of nightly sleep in hours. Defaults to 1.0.")),
	mcp.WithNumber("num_anomalies", mcp.Description("Number of days to turn into anomalies. Defaults to 2.")),
	mcp.WithString("anomaly_multipliers", mcp.Description("Comma-separated duration multipliers, one per anomaly (e.g. '2.0,0.1'). Empty draws random multipliers between 1.8 and 2.5.")),
	mcp.WithString("seed", mcp.Description("Random seed (unsigned integer) for a reproducible run. Defaults to a random seed, reported in the result.")),
	mcp.WithNumber("threshold_multiplier", mcp.Description("Width of the normal band in standard deviations. Defaults to the server setting (1.5).")),
)

// --- Tool handlers ---

func (h *handlers) detectSleepAnomalies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.ds == nil {
		return mcp.NewToolResultError(errNoDataSource.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), h.opts.WindowDays)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	report, err := h.analyzeRange(ctx, start, end, req.GetFloat("threshold_multiplier", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(report)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) generateSampleSleepData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sample, err := h.sampleRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sample.UserID = UserIDFromContext(ctx)

	report, err := h.svc.Sample(ctx, sample)
	if err != nil {
		return mcp.NewToolResultError("sample generation failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(report)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) sampleRequest(req mcp.CallToolRequest) (analysis.SampleRequest, error) {
	d := h.opts.Sample
	out := analysis.SampleRequest{
		Baseline: synth.BaselineOptions{
			Days:           req.GetInt("days", d.Baseline.Days),
			BaseSleepHours: req.GetFloat("base_sleep_hours", d.Baseline.BaseSleepHours),
			StdDevHours:    req.GetFloat("std_dev_hours", d.Baseline.StdDevHours),
		},
		Inject: synth.InjectOptions{
			NumAnomalies: req.GetInt("num_anomalies", d.Inject.NumAnomalies),
			Multipliers:  append([]float64(nil), d.Inject.Multipliers...),
		},
		Seed:                d.Seed,
		ThresholdMultiplier: req.GetFloat("threshold_multiplier", d.ThresholdMultiplier),
	}

	if out.Baseline.Days <= 0 || out.Baseline.Days > synth.MaxDays {
		return out, fmt.Errorf("days must be between 1 and %d", synth.MaxDays)
	}
	if out.Baseline.BaseSleepHours <= 0 {
		return out, fmt.Errorf("base_sleep_hours must be positive")
	}
	if out.Baseline.StdDevHours < 0 {
		return out, fmt.Errorf("std_dev_hours must not be negative")
	}
	if args := req.GetArguments(); args != nil {
		if _, ok := args["anomaly_multipliers"]; ok {
			m, err := synth.ParseMultipliers(req.GetString("anomaly_multipliers", ""))
			if err != nil {
				return out, err
			}
			out.Inject.Multipliers = m
		}
	}
	if s := req.GetString("seed", ""); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return out, fmt.Errorf("invalid seed %q", s)
		}
		out.Seed = &seed
	}
	return out, nil
}

func (h *handlers) analyzeRange(ctx context.Context, start, end time.Time, multiplier float64) (*analysis.Report, error) {
	uid := UserIDFromContext(ctx)
	records, err := h.ds.QuerySleepRecords(ctx, start, end, uid)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return h.svc.AnalyzeRecords(ctx, analysis.Input{
		Source:              analysis.SourceStored,
		UserID:              uid,
		ThresholdMultiplier: multiplier,
	}, records)
}
