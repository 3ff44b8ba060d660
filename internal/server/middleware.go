package server

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/avisek/frontend-mentor-solutions/internal/server/reqctx"
	"github.com/maruel/ksid"
)

// statusWriter records the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	if sw.status == 0 {
		sw.status = statusCode
	}
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Hijack lets the live reload websocket take over the connection.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	c, rw, err := http.NewResponseController(sw.ResponseWriter).Hijack()
	if err == nil {
		sw.status = http.StatusSwitchingProtocols
	}
	return c, rw, err
}

// RequestLogger tags each request with an id and the client IP, and logs it
// once served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ksid.NewID()
		ip := reqctx.GetClientIP(r)
		ctx := reqctx.WithRequestID(reqctx.WithClientIP(r.Context(), ip), id)
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		slog.DebugContext(ctx, "http",
			"id", id.String(),
			"ip", ip,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"size", sw.size,
			"dur", time.Since(start).Round(time.Microsecond),
		)
	})
}
