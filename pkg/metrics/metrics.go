// Package metrics exposes the Prometheus metrics of the Drata client.
// The metrics themselves are defined in the packages that record them
// (client, ratelimit, pagination, poll, watermark, node) and registered
// with promauto on the default registry.
//
// Client metrics (pkg/client):
//   - drata_requests_total{method, status} (Counter): API requests by method and HTTP status
//   - drata_request_duration_seconds{method} (Histogram): request duration
//   - drata_errors_total{class} (Counter): failures by class (client, server, rate_limit, network)
//   - drata_retries_total (Counter): retries after HTTP 429
//   - drata_retry_backoff_seconds (Histogram): backoff slept before a retry
//   - drata_retry_exhausted_total (Counter): requests that ran out of retries
//
// Rate limit metrics (pkg/ratelimit):
//   - drata_rate_limit_remaining (Gauge): requests left in the current window
//   - drata_rate_limit_waits_total (Counter): requests held until the window reset
//   - drata_rate_limit_throttles_total (Counter): requests sent with a nearly spent window
//
// Pagination metrics (pkg/pagination):
//   - drata_pagination_pages_total (Counter): list pages fetched
//   - drata_pagination_items_total (Counter): items collected from list pages
//
// Poll metrics (pkg/poll):
//   - drata_poll_events_total{event} (Counter): events emitted
//   - drata_poll_errors_total{event} (Counter): strategy failures
//   - drata_poll_duration_seconds{event} (Histogram): poll duration
//
// Watermark metrics (pkg/watermark):
//   - drata_watermark_ops_total{op, result} (Counter): store operations
//
// Node metrics (pkg/node):
//   - drata_action_items_total{resource, operation, result} (Counter): action items processed
//
// Example queries:
//
//	# Share of rate limited requests
//	sum(rate(drata_requests_total{status="429"}[5m])) / sum(rate(drata_requests_total[5m]))
//
//	# Failing poll strategies
//	increase(drata_poll_errors_total[1h]) > 0
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(drata_request_duration_seconds_bucket[5m]))
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer collects the drata_* metrics, which promauto registers with the
// default registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// NewMux returns a mux serving /metrics and a /health liveness probe.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
