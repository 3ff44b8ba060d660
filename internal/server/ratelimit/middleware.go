// HTTP middleware and response writer for rate limiting.

package ratelimit

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	apierrors "github.com/avisek/frontend-mentor-solutions/internal/errors"
	"github.com/avisek/frontend-mentor-solutions/internal/server/reqctx"
)

// WriteHeaders writes rate limit headers to the response.
// Headers are written on all responses (both success and 429).
func WriteHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// responseWriter injects rate limit headers before any response is written.
type responseWriter struct {
	http.ResponseWriter
	result      Result
	wroteHeader bool
}

// NewResponseWriter creates a response writer that injects rate limit headers.
func NewResponseWriter(w http.ResponseWriter, result Result) http.ResponseWriter {
	return &responseWriter{ResponseWriter: w, result: result}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets the live reload websocket take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Middleware limits requests per client IP. A nil limiter disables it.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := reqctx.ClientIP(r.Context())
		if ip == "" {
			ip = reqctx.GetClientIP(r)
		}
		result := l.Allow("ip:" + ip)
		w = NewResponseWriter(w, result)
		if !result.Allowed {
			apiErr := apierrors.RateLimited(int(result.RetryAfter.Seconds()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(apiErr.StatusCode())
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":   map[string]any{"code": apiErr.Code(), "message": apiErr.Error()},
				"details": apiErr.Details(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
