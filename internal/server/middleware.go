package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sbmcp "github.com/claude/sleepbuddy/internal/mcp"
	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const (
	userIDKey contextKey = iota
	userInfoKey
)

// UserInfo identifies the caller.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

var devUser = UserInfo{Login: "local", DisplayName: "Local Dev User"}

// WhoIsClient resolves a tailnet peer. *local.Client from tsnet satisfies it.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// APIKeyAuth returns middleware that validates the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
				return
			}
			if key != apiKey {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DevIdentity stores user 1 for every request, for running without Tailscale.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), 1, devUser)))
	})
}

// TailscaleIdentity resolves the caller with WhoIs and maps the login to a
// user ID. users may be nil, in which case every tailnet user is user 1.
func TailscaleIdentity(lc WhoIsClient, users func(ctx context.Context, login, displayName string) (int, error), log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := lc.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who.UserProfile == nil {
				log.Warn("whois failed", "remote", r.RemoteAddr, "error", err)
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown tailnet peer"})
				return
			}
			info := UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}

			uid := 1
			if users != nil {
				uid, err = users(r.Context(), info.Login, info.DisplayName)
				if err != nil {
					log.Error("resolving user", "login", info.Login, "error", err)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolving user"})
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), uid, info)))
		})
	}
}

// identity dispatches to TailscaleIdentity once SetTailscale was called and
// to DevIdentity before that.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := s.tailscale()
		if lc == nil {
			dev.ServeHTTP(w, r)
			return
		}
		var users func(context.Context, string, string) (int, error)
		if s.store != nil {
			users = s.store.GetOrCreateUser
		}
		TailscaleIdentity(lc, users, s.log)(next).ServeHTTP(w, r)
	})
}

// MCPUserContext carries the caller resolved by the identity middleware into
// MCP handlers.
func MCPUserContext(ctx context.Context, r *http.Request) context.Context {
	return sbmcp.WithUserID(ctx, userIDFromContext(r))
}

func withIdentity(ctx context.Context, uid int, info UserInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, uid)
	return context.WithValue(ctx, userInfoKey, info)
}

// userIDFromContext returns the user set by the identity middleware, or 1.
func userIDFromContext(r *http.Request) int {
	if id, ok := r.Context().Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers such as MCP push events through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
