// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicpulse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// NotificationsDispatched counts notification side effects by type and result.
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_notifications_dispatched_total",
		Help: "Notification side effects by type and result",
	}, []string{"type", "result"})

	// SearchFallbacks counts search categories answered with placeholder results.
	SearchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_search_fallbacks_total",
		Help: "Search categories that degraded to fallback results",
	}, []string{"category"})

	// UploadsRejected counts rejected uploads by kind and reason.
	UploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_uploads_rejected_total",
		Help: "Rejected file uploads by kind and reason",
	}, []string{"kind", "reason"})

	// WebSocketConnectionsTotal is the gauge of open notification stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicpulse_websocket_connections_total",
		Help: "Number of open notification stream connections",
	})

	// WebSocketBackpressureDrops counts stream messages dropped because a
	// client's send buffer was full or already closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_websocket_backpressure_drops_total",
		Help: "Notification stream messages dropped by reason",
	}, []string{"reason"})

	// RateLimitRejections counts requests refused by a named rate limit rule,
	// with reason "exceeded" or "store_unavailable".
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicpulse_rate_limit_rejections_total",
		Help: "Requests refused by rate limit rule and reason",
	}, []string{"rule", "reason"})
)

// ObserveQuery records the latency of a database statement started at start.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
