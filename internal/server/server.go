package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/sleepbuddy/internal/analysis"
	"github.com/claude/sleepbuddy/internal/models"
	"github.com/go-chi/chi/v5"
)

// Store is the persistence the record and run endpoints need.
// *storage.DB satisfies it.
type Store interface {
	InsertSleepRecords(ctx context.Context, rows []models.SleepRecordRow) (int64, error)
	QuerySleepRecords(ctx context.Context, start, end time.Time, userID int) ([]models.SleepRecord, error)
	QueryAnalysisRuns(ctx context.Context, userID, limit int) ([]models.AnalysisRunRow, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      Store
	analysis   *analysis.Service
	log        *slog.Logger
	apiKey     string
	windowDays int
	sample     analysis.SampleRequest
	router     chi.Router

	mu sync.RWMutex
	lc WhoIsClient
}

// New creates a new Server with all routes configured. store may be nil, in
// which case the record and run endpoints answer 503.
func New(store Store, svc *analysis.Service, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:      store,
		analysis:   svc,
		log:        log,
		apiKey:     apiKey,
		windowDays: 7,
		sample:     analysis.DefaultSampleRequest(),
		router:     chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	// Ingest (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleIngest)
	})

	// Analysis API (no auth, tsnet handles access)
	s.router.Post("/api/v1/analyze", s.handleAnalyze)
	s.router.Get("/api/v1/sample", s.handleSample)
	s.router.Get("/api/v1/sleep/records", s.handleSleepRecords)
	s.router.Get("/api/v1/sleep/anomalies", s.handleSleepAnomalies)
	s.router.Get("/api/v1/sleep/prompt", s.handleSleepPrompt)
	s.router.Get("/api/v1/runs", s.handleRuns)
	s.router.Get("/api/v1/me", s.handleMe)
}

// Mount attaches an additional handler, such as /metrics or /mcp.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// SetTailscale switches identity resolution from the dev user to Tailscale
// WhoIs lookups.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lc = lc
}

// SetWindowDays sets the default look-back for record queries without a start.
func (s *Server) SetWindowDays(days int) {
	if days > 0 {
		s.windowDays = days
	}
}

// SetSampleDefaults sets the synthetic flow parameters that query
// parameters of /api/v1/sample override.
func (s *Server) SetSampleDefaults(req analysis.SampleRequest) {
	s.sample = req
}

func (s *Server) tailscale() WhoIsClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lc
}
