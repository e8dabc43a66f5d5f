// Package metrics provides the centralized Prometheus metrics reference for
// the back-office client. All metrics are defined in their respective
// packages (api, cache, pagination, mutation, debounce, budget) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/api):
//   - backoffice_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - backoffice_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - backoffice_errors_total{class} (Counter): Errors by class (client, server, endpoint_unsupported, network)
//
// Retry Metrics (pkg/api):
//   - backoffice_retries_total{error_class} (Counter): Retry attempts by error class
//   - backoffice_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - backoffice_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Sweep Metrics (pkg/pagination):
//   - backoffice_sweep_pages_total (Counter): Pages fetched by exhaustive sweeps
//   - backoffice_sweep_duration_seconds (Histogram): Sweep duration
//   - backoffice_sweep_truncated_total (Counter): Sweeps stopped by the page ceiling
//
// Cache Metrics (pkg/cache):
//   - backoffice_cache_hits_total (Counter): Query cache hits
//   - backoffice_cache_misses_total (Counter): Query cache misses
//   - backoffice_cache_invalidations_total (Counter): Entries invalidated after mutations
//   - backoffice_cache_errors_total{operation} (Counter): Cache operation errors
//
// Mutation Metrics (pkg/mutation):
//   - backoffice_mutation_attempts_total{outcome} (Counter): Strategy attempts by outcome
//   - backoffice_mutation_fallbacks_total (Counter): Advances to a fallback strategy
//   - backoffice_mutation_simulated_total (Counter): Mutations resolved by the simulated strategy
//
// Debounce Metrics (pkg/debounce):
//   - backoffice_debounced_searches_total (Counter): Searches that actually fired
//   - backoffice_stale_results_discarded_total (Counter): Results discarded as superseded
//
// Failure Budget Metrics (pkg/budget):
//   - backoffice_upstream_consecutive_failures (Gauge): Failures since last success
//   - backoffice_sweep_blocks_total (Counter): Sweeps blocked at critical budget
//   - backoffice_sweep_throttles_total (Counter): Sweeps throttled at warning budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(backoffice_cache_hits_total[5m])) /
//   (sum(rate(backoffice_cache_hits_total[5m])) + sum(rate(backoffice_cache_misses_total[5m])))
//
//   # Simulated mutations (should be zero in production)
//   rate(backoffice_mutation_simulated_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(backoffice_request_duration_seconds_bucket[5m]))
//
//   # Sweep truncation rate
//   rate(backoffice_sweep_truncated_total[5m]) / rate(backoffice_sweep_pages_total[5m])
