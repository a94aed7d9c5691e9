package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/anomaly"
	"github.com/claude/sleepbuddy/internal/config"
	"github.com/claude/sleepbuddy/internal/extract"
	sbmcp "github.com/claude/sleepbuddy/internal/mcp"
	"github.com/claude/sleepbuddy/internal/metrics"
	"github.com/claude/sleepbuddy/internal/server"
	"github.com/claude/sleepbuddy/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	migrationsPath := flag.String("migrations", "migrations", "path to migration files")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := cfg.Logging.Logger(os.Stdout)
	log.Info("SleepBuddy starting", "version", Version)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Connect database (optional)
	ctx := context.Background()
	var db *storage.DB
	if cfg.Database.Enabled() {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, *migrationsPath); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err = storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
	} else {
		if *migrateOnly {
			log.Error("migrate-only requires a database")
			os.Exit(1)
		}
		log.Warn("no database configured: ingest, stored records and run log are disabled")
	}

	detector, err := anomaly.NewDetector(cfg.Analysis.ThresholdMultiplier)
	if err != nil {
		log.Error("invalid analysis config", "error", err)
		os.Exit(1)
	}

	// Interfaces stay nil without a database
	var (
		runs  analysis.RunStore
		store server.Store
		ds    sbmcp.DataSource
	)
	if db != nil {
		runs, store, ds = db, db, db
	}

	svc := analysis.NewService(detector, extract.Extractor{}, runs, log)
	sample := analysis.SampleRequestFromConfig(cfg.Sample)

	// Create server
	srv := server.New(store, svc, cfg.Auth.APIKey, log)
	srv.SetWindowDays(cfg.Analysis.WindowDays)
	srv.SetSampleDefaults(sample)
	srv.Mount("/metrics", promhttp.Handler())

	mcpSrv := sbmcp.New(ds, svc, sbmcp.Options{WindowDays: cfg.Analysis.WindowDays, Sample: sample}, Version, log)
	srv.Mount("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(server.MCPUserContext),
	))

	// Start server, tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
