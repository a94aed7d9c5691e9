package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/config"
	"github.com/claude/sleepbuddy/internal/extract"
	"github.com/claude/sleepbuddy/internal/prompt"
	"github.com/claude/sleepbuddy/internal/synth"
	"github.com/claude/sleepbuddy/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	days := flag.Int("days", 0, "days to generate (overrides config)")
	anomalies := flag.Int("anomalies", -1, "number of anomalies to inject (overrides config)")
	multipliers := flag.String("multipliers", "", "comma-separated anomaly multipliers (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (0 = config seed or random)")
	jsonOut := flag.Bool("json", false, "print the generated dataset and report as JSON")
	showPrompt := flag.Bool("prompt", false, "print the wellness prompt for the result")
	serverURL := flag.String("upload", "", "upload the dataset to this SleepBuddy server URL")
	apiKey := flag.String("api-key", os.Getenv("SLEEPBUDDY_AUTH_API_KEY"), "API key for -upload")
	dryRun := flag.Bool("dry-run", false, "with -upload: check state but don't send")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("sleepbuddy-sample", Version)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	log := cfg.Logging.Logger(os.Stderr)

	req := analysis.SampleRequestFromConfig(cfg.Sample)
	if *days > 0 {
		req.Baseline.Days = *days
	}
	if *anomalies >= 0 {
		req.Inject.NumAnomalies = *anomalies
	}
	if *multipliers != "" {
		m, err := synth.ParseMultipliers(*multipliers)
		if err != nil {
			log.Error("invalid -multipliers", "error", err)
			os.Exit(1)
		}
		req.Inject.Multipliers = m
	}
	if *seed != 0 {
		req.Seed = seed
	}

	detector, err := anomaly.NewDetector(cfg.Analysis.ThresholdMultiplier)
	if err != nil {
		log.Error("invalid analysis config", "error", err)
		os.Exit(1)
	}
	svc := analysis.NewService(detector, extract.Extractor{}, nil, log)

	ctx := context.Background()
	report, err := svc.Sample(ctx, req)
	if err != nil {
		log.Error("sample failed", "error", err)
		os.Exit(1)
	}

	switch {
	case *jsonOut:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error("encoding report", "error", err)
			os.Exit(1)
		}
	case *showPrompt:
		fmt.Print(prompt.Sleep(report.Result))
	default:
		printReport(report)
	}

	if *serverURL != "" {
		if err := uploadDataset(ctx, *serverURL, *apiKey, *dryRun, report, log); err != nil {
			log.Error("upload failed", "error", err)
			os.Exit(1)
		}
	}
}

func printReport(r *analysis.SampleReport) {
	fmt.Printf("Seed: %d\n\n", r.Seed)
	fmt.Println("=== Injected Anomalies ===")
	if len(r.Injections) == 0 {
		fmt.Println("  none")
	}
	for _, inj := range r.Injections {
		fmt.Printf("  day %d: %.0f -> %.0f minutes (x%.2f)\n",
			inj.Index, float64(inj.BeforeMs)/60000, float64(inj.AfterMs)/60000, inj.Multiplier)
	}
	fmt.Println()
	fmt.Print(prompt.Stats(r.Result))
}

func uploadDataset(ctx context.Context, serverURL, apiKey string, dryRun bool, r *analysis.SampleReport, log *slog.Logger) error {
	if apiKey == "" && !dryRun {
		return fmt.Errorf("-api-key is required for -upload")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home directory: %w", err)
	}
	state, err := upload.OpenStateDB(filepath.Join(homeDir, ".sleepbuddy-sample"))
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	uploader := upload.New(upload.NewClient(serverURL, apiKey), state, dryRun, log)
	if err := uploader.Upload(ctx, r.Dataset); err != nil {
		return err
	}

	stats := uploader.Stats()
	log.Info("upload complete",
		"uploaded", stats.DatasetsUploaded,
		"skipped", stats.DatasetsSkipped,
		"records_inserted", stats.RecordsInserted,
	)
	return nil
}
