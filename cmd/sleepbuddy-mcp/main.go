package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/config"
	"github.com/claude/sleepbuddy/internal/extract"
	sbmcp "github.com/claude/sleepbuddy/internal/mcp"
	"github.com/claude/sleepbuddy/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (local mode; defaults apply when empty)")
	serverURL := flag.String("server", "", "SleepBuddy server URL for remote mode (e.g. http://sleepbuddy.tail1234.ts.net)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("sleepbuddy-mcp", Version)
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

	// stdout carries the protocol
	log := cfg.Logging.Logger(os.Stderr)

	detector, err := anomaly.NewDetector(cfg.Analysis.ThresholdMultiplier)
	if err != nil {
		log.Error("invalid analysis config", "error", err)
		os.Exit(1)
	}

	var ds sbmcp.DataSource
	var runs analysis.RunStore
	switch {
	case *serverURL != "":
		ds = sbmcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	case cfg.Database.Enabled():
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds, runs = db, db
		log.Info("local mode", "database", cfg.Database.Host)
	default:
		log.Warn("no server or database configured: only synthetic data is available")
	}

	svc := analysis.NewService(detector, extract.Extractor{}, runs, log)
	s := sbmcp.New(ds, svc, sbmcp.Options{
		WindowDays: cfg.Analysis.WindowDays,
		Sample:     analysis.SampleRequestFromConfig(cfg.Sample),
	}, Version, log)

	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
