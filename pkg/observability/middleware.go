package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - todoflow_requests_total (counter): per request with method, route pattern and status class labels
//   - todoflow_request_duration_seconds (histogram): request duration with method and route labels
//   - todoflow_streaming_connections_active (gauge): incremented while an SSE response is in flight
//
// The route label is the ServeMux pattern that matched, so it stays
// bounded regardless of query strings or path values.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		if r.Header.Get("Accept") == "text/event-stream" {
			sw.markStreaming()
		}
		defer sw.done()

		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, route, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// notice SSE responses.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

func (w *statusWriter) markStreaming() {
	if !w.streaming {
		w.streaming = true
		StreamingConnections.Inc()
	}
}

func (w *statusWriter) done() {
	if w.streaming {
		StreamingConnections.Dec()
	}
}

func (w *statusWriter) observeHeader() {
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.markStreaming()
	}
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		w.observeHeader()
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
		w.observeHeader()
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// This is essential for SSE streaming support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
