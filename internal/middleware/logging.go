package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/DukeRupert/storefront/internal/auth"
)

// quietPaths are polled by probes and scrapers and never logged.
var quietPaths = []string{"/health", "/metrics"}

// redactedParams never reach the log verbatim.
var redactedParams = []string{
	"token",
	"access_token",
	"refresh_token",
	"code",
	"key",
	"api_key",
	"apikey",
	"secret",
	"session_id",
}

// RequestLoggingMiddleware logs one line per API request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// Handler returns middleware that logs method, route, status, latency and,
// when WithUser wraps it, the caller. Gateway and upstream failures (5xx)
// log at Warn.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(quietPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if r.Pattern != "" {
			attrs = append(attrs, "route", r.Pattern)
		}
		if user := auth.GetUser(r.Context()); user != nil {
			attrs = append(attrs, "user_id", user.ID, "role", string(user.Role))
		}

		if wrapped.statusCode >= 500 {
			m.logger.Warn("request", attrs...)
			return
		}
		m.logger.Info("request", attrs...)
	})
}

// responseWriter captures the status code for the log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath rebuilds path?query with sensitive values replaced.
// Parameters without a value are dropped.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		name, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if slices.Contains(redactedParams, strings.ToLower(name)) {
			kept = append(kept, name+"=[REDACTED]")
			continue
		}
		kept = append(kept, part)
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
