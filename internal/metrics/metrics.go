// Package metrics provides Prometheus metrics for the dissemination
// server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissemination_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dissemination_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Resolution metrics
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissemination_resolutions_total",
			Help: "Article resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// Content transfer metrics
	artifactBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dissemination_artifact_bytes_served_total",
			Help: "Total artifact bytes streamed to clients",
		},
	)

	artifactDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissemination_artifact_downloads_total",
			Help: "Total artifact downloads",
		},
		[]string{"status"},
	)

	// Backend store metrics
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dissemination_store_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissemination_store_operations_total",
			Help: "Total object store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// CDN purge metrics
	purgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dissemination_cdn_purges_total",
			Help: "Total CDN purge calls",
		},
		[]string{"status"},
	)

	purgeEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dissemination_purge_events_total",
			Help: "Total storage-change events mapped to purge paths",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordResolution records one article resolution outcome.
func RecordResolution(outcome string) {
	resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordArtifactDownload records a served artifact.
func RecordArtifactDownload(bytes int64, success bool) {
	artifactBytesServed.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	artifactDownloadsTotal.WithLabelValues(status).Inc()
}

// RecordStoreOperation records an object store operation.
func RecordStoreOperation(backend, operation string, duration time.Duration, success bool) {
	storeOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordPurge records one CDN purge call result.
func RecordPurge(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	purgesTotal.WithLabelValues(status).Inc()
}

// RecordPurgeEvent records a storage-change event that mapped to at
// least one purge path.
func RecordPurgeEvent() {
	purgeEventsTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. The
// route label uses the matched pattern, not the raw path, to bound
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
