package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"launchkit/api/internal/blocks"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/logging"
	"launchkit/api/internal/media"
	"launchkit/api/internal/ratelimit"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     zerolog.Logger

	authLimiter      *ratelimit.Limiter
	telemetryLimiter *ratelimit.Limiter
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	cfg := service.cfg
	return &HTTPServer{
		service:          service,
		corsOrigin:       corsOrigin,
		logger:           logging.Component(service.logger, "http"),
		authLimiter:      ratelimit.PerMinute(cfg.AuthRatePerMinute, cfg.AuthRateBurst, 0),
		telemetryLimiter: ratelimit.PerMinute(cfg.TelemetryRatePerMinute, cfg.TelemetryRateBurst, 0),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if s.isPublicHost(r) {
		s.handlePublicPage(w, r)
		return
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/blocks" {
		writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks.Registry()})
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/media/") {
		s.handleMedia(w, r, strings.TrimPrefix(r.URL.Path, "/media/"))
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/auth/") {
		if !s.allow(w, r, s.authLimiter) {
			return
		}
		s.handleAuth(w, r, strings.TrimPrefix(r.URL.Path, "/api/auth/"))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		s.handleSession(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/telemetry" {
		if !s.allow(w, r, s.telemetryLimiter) {
			return
		}
		s.handleTelemetryIngest(w, r)
		return
	}

	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/actions/") {
		s.handleAction(w, r, strings.TrimPrefix(r.URL.Path, "/actions/"))
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "invitations":
			if r.Method == http.MethodGet && len(parts) == 3 {
				s.handleInvitationPreview(w, r, parts[2])
				return
			}
		case "workspaces":
			s.handleWorkspaces(w, r, parts[2:])
			return
		case "sites":
			if len(parts) >= 3 {
				s.handleSites(w, r, parts[2], parts[3:])
				return
			}
		case "campaigns":
			if len(parts) >= 3 {
				s.handleCampaigns(w, r, parts[2], parts[3:])
				return
			}
		case "assets":
			if r.Method == http.MethodGet && len(parts) == 3 {
				s.handleAsset(w, r, parts[2])
				return
			}
		case "subdomains":
			if r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "availability" {
				if !s.allow(w, r, s.authLimiter) {
					return
				}
				s.handleSubdomainAvailability(w, r)
				return
			}
		case "admin":
			if r.Method == http.MethodGet && len(parts) == 3 {
				s.handleAdmin(w, r, parts[2])
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"redis":    map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if s.service.sessions != nil {
		if err := s.service.sessions.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleAction(w http.ResponseWriter, r *http.Request, name string) {
	if !s.service.hasAction(name) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	c := newCall(guard.FromContext(r.Context()), w, r)
	if err := parseActionForm(w, r); err != nil {
		key := i18n.InvalidData
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			key = i18n.FileTooLarge
		}
		writeJSON(w, http.StatusOK, ActionResult{Error: c.locale.T(key)})
		return
	}
	writeJSON(w, http.StatusOK, s.service.RunAction(r.Context(), name, c))
}

func parseActionForm(w http.ResponseWriter, r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+1<<20)
		return r.ParseMultipartForm(1 << 20)
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2<<20)
	return r.ParseForm()
}

// allow applies a rate limiter keyed by client IP.
func (s *HTTPServer) allow(w http.ResponseWriter, r *http.Request, limiter *ratelimit.Limiter) bool {
	if limiter.Allow(ratelimit.ClientIP(r)) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", i18n.FromRequest(r).T(i18n.TooManyRequests), nil)
	return false
}

// isPublicHost reports whether the request targets a published site rather
// than the builder.
func (s *HTTPServer) isPublicHost(r *http.Request) bool {
	appHost := strings.ToLower(s.service.cfg.AppHost)
	if appHost == "" {
		return false
	}
	return requestHost(r) != hostOnly(appHost)
}

func requestHost(r *http.Request) string {
	return hostOnly(strings.ToLower(r.Host))
}

func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (guard.Session, bool) {
	result := guard.FromContext(r.Context()).RequireSession(r.Context())
	if !result.Success {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return guard.Session{}, false
	}
	return result.Data, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = guard.WithScope(ctx, s.service.NewScope(r))
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		event := s.logger.Info()
		if writer.status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("host", r.Host).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	if corsOrigin != "*" {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
