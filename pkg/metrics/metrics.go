// Package metrics provides the centralized Prometheus metrics registry for
// the appraiser. All metrics are defined in their respective packages
// (steam, pricing, ratelimit, history, batch) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the appraiser.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Steam Lookup Metrics (pkg/steam):
//   - appraiser_steam_requests_total{endpoint, status} (Counter): Identity lookups by endpoint and HTTP status
//   - appraiser_steam_request_duration_seconds{endpoint} (Histogram): Lookup duration by endpoint
//
// Pricing Metrics (pkg/pricing):
//   - appraiser_pricing_requests_total{operation, status} (Counter): Pricing calls by operation and HTTP status
//   - appraiser_pricing_request_duration_seconds{operation} (Histogram): Pricing call duration
//
// Pacer Metrics (pkg/ratelimit):
//   - appraiser_pacer_wait_seconds (Histogram): Time spent waiting for the next pricing slot
//   - appraiser_pacer_acquires_total (Counter): Pricing slots granted
//
// History Metrics (pkg/history):
//   - appraiser_history_entries (Gauge): Entries in the history mapping after the last save
//   - appraiser_history_errors_total{operation} (Counter): History load/save failures
//
// Batch Metrics (pkg/batch):
//   - appraiser_batches_total (Counter): Batches processed
//   - appraiser_batch_identifiers_total{state} (Counter): Per-identifier outcomes (skipped, identity_failed, banned, pricing_failed, priced)
//   - appraiser_batch_duration_seconds (Histogram): End-to-end batch duration
//
// Example Prometheus Queries:
//
//   # Pricing error rate
//   sum(rate(appraiser_pricing_requests_total{status!~"2.."}[5m])) /
//   sum(rate(appraiser_pricing_requests_total[5m]))
//
//   # Share of identifiers skipped by the history dedup
//   rate(appraiser_batch_identifiers_total{state="skipped"}[15m]) /
//   sum(rate(appraiser_batch_identifiers_total[15m]))
//
//   # P95 batch latency
//   histogram_quantile(0.95, rate(appraiser_batch_duration_seconds_bucket[15m]))
//
//   # Time lost to pacing per minute
//   rate(appraiser_pacer_wait_seconds_sum[1m])
