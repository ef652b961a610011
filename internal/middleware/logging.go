package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// skipLogPaths are polled by infrastructure and would drown the request log.
var skipLogPaths = []string{"/health", "/metrics"}

// sensitiveParams are redacted from logged query strings.
var sensitiveParams = []string{
	"token",
	"code",
	"key",
	"secret",
	"password",
	"api_key",
	"apikey",
	"access_token",
	"refresh_token",
}

// RequestLoggingMiddleware logs HTTP requests with timing and status information.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// Handler returns middleware that logs every request except health and
// metrics polls. Preflight requests are logged at debug.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(skipLogPaths, r.URL.Path) {
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
			"bytes", wrapped.bytes,
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			attrs = append(attrs, "request_id", reqID)
		}

		switch {
		case r.Method == http.MethodOptions:
			m.logger.Debug("request", attrs...)
		case wrapped.statusCode >= 500:
			m.logger.Warn("request", attrs...)
		default:
			m.logger.Info("request", attrs...)
		}
	})
}

// responseWriter captures the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath redacts sensitive query parameters for logging.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var safeParts []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if slices.Contains(sensitiveParams, strings.ToLower(key)) {
			safeParts = append(safeParts, key+"=[REDACTED]")
		} else {
			safeParts = append(safeParts, part)
		}
	}

	if len(safeParts) == 0 {
		return path
	}

	return path + "?" + strings.Join(safeParts, "&")
}
