// Package mcp exposes sleep analysis to LLM clients over the Model Context
// Protocol.
package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Options carry the defaults tools fall back to when an argument is omitted.
type Options struct {
	WindowDays int
	Sample     analysis.SampleRequest
}

// New creates an MCP server with all tools, resources and prompts registered.
// ds may be nil when no record store is available; the synthetic data tool
// keeps working.
func New(ds DataSource, svc *analysis.Service, opts Options, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("SleepBuddy", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions("SleepBuddy sleep analysis server. Detect unusually long or short nights in stored sleep records, or generate synthetic sleep data with injected anomalies. Durations are in minutes."),
	)

	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	h := &handlers{ds: ds, svc: svc, opts: opts, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolDetectSleepAnomalies, Handler: h.detectSleepAnomalies},
		server.ServerTool{Tool: toolGenerateSampleSleepData, Handler: h.generateSampleSleepData},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentAnomalies, Handler: h.recentAnomalies},
	)

	// Prompts
	s.AddPrompt(promptSleepWellness, h.sleepWellness)

	return s
}

// handlers holds dependencies for MCP tool, resource and prompt handlers.
type handlers struct {
	ds   DataSource
	svc  *analysis.Service
	opts Options
	log  *slog.Logger
}

// --- Resource definitions ---

var resRecentAnomalies = mcp.NewResource(
	"sleepbuddy://recent_anomalies",
	"Recent Sleep Anomalies",
	mcp.WithResourceDescription("Anomaly classification of the stored sleep records of the last days"),
	mcp.WithMIMEType("application/json"),
)

// --- Prompt definitions ---

var promptSleepWellness = mcp.NewPrompt("sleep_wellness",
	mcp.WithPromptDescription("Wellness-buddy instructions with the sleep statistics and anomalies of a date range"),
	mcp.WithArgument("start", mcp.ArgumentDescription("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the analysis window.")),
	mcp.WithArgument("end", mcp.ArgumentDescription("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)
