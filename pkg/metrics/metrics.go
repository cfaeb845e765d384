// Package metrics provides the centralized Prometheus metrics registry for
// the bulk catalog engine. All metrics are defined in their respective
// packages (ratelimit, client, cache, engine) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_bucket_rate (Gauge): Current shared rate ceiling in requests per second
//   - catalog_bucket_wait_seconds (Histogram): Time spent waiting for admission
//   - catalog_throttle_events_total (Counter): Ceiling contractions after rate limit signals
//   - catalog_throttle_recoveries_total (Counter): Recovery steps back toward the baseline
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{method, status} (Counter): Total requests by method and HTTP status
//   - catalog_request_duration_seconds{method} (Histogram): Request duration by method
//   - catalog_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Lookup Cache Metrics (pkg/cache):
//   - catalog_lookup_cache_hits_total (Counter): Lookup cache hits
//   - catalog_lookup_cache_misses_total (Counter): Lookup cache misses
//   - catalog_lookup_cache_errors_total{operation} (Counter): Cache operation errors
//
// Bulk Run Metrics (pkg/engine):
//   - catalog_bulk_items_total{outcome} (Counter): Terminal item outcomes (succeeded, failed, skipped)
//   - catalog_bulk_retries_total{error_class} (Counter): Item retry attempts by error class
//   - catalog_bulk_retry_exhausted_total (Counter): Items that exhausted all retry attempts
//
// Example Prometheus Queries:
//
//   # Effective run throughput
//   sum(rate(catalog_bulk_items_total[1m]))
//
//   # Failure rate
//   rate(catalog_bulk_items_total{outcome="failed"}[5m])
//
//   # Fraction of time spent throttled below the baseline
//   catalog_bucket_rate
//
//   # P95 admission wait
//   histogram_quantile(0.95, rate(catalog_bucket_wait_seconds_bucket[5m]))
//
//   # Lookup cache hit rate
//   rate(catalog_lookup_cache_hits_total[5m]) /
//   (rate(catalog_lookup_cache_hits_total[5m]) + rate(catalog_lookup_cache_misses_total[5m]))
