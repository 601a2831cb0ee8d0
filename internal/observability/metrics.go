// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	StreamReconnects   prometheus.Counter
	StreamState        prometheus.Gauge
	MessagesProcessed  *prometheus.CounterVec
	MessageParseErrors *prometheus.CounterVec

	// Ingestion metrics
	SnapshotsCached  *prometheus.CounterVec
	SnapshotsDropped *prometheus.CounterVec
	SnapshotsStored  prometheus.Counter
	PersistErrors    *prometheus.CounterVec

	// Scoring metrics
	ScoringLatency   prometheus.Histogram
	AnomalyScores    prometheus.Histogram
	PatternsRecorded prometheus.Counter

	// Risk metrics
	OrdersEmitted prometheus.Counter
	TradesBlocked *prometheus.CounterVec
	DailyTrades   prometheus.Gauge

	// Health metrics
	LastMessageTimestamp prometheus.Gauge
	UptimeSeconds        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_alpha_engine"
	}

	return &Metrics{
		// Stream metrics
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),
		StreamState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected, 1=connecting, 2=streaming)",
		}),
		MessagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_processed_total",
			Help:      "Total number of stream messages processed by type",
		}, []string{"message_type"}),
		MessageParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "message_parse_errors_total",
			Help:      "Total number of malformed stream messages by type",
		}, []string{"message_type"}),

		// Ingestion metrics
		SnapshotsCached: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_cached_total",
			Help:      "Total number of snapshots cached by mint style",
		}, []string{"mint_style"}),
		SnapshotsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_dropped_total",
			Help:      "Total number of snapshots dropped by reason",
		}, []string{"reason"}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_stored_total",
			Help:      "Total number of snapshots persisted to storage",
		}),
		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "persist_errors_total",
			Help:      "Total number of storage write failures by store",
		}, []string{"store"}),

		// Scoring metrics
		ScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alpha",
			Name:      "scoring_latency_seconds",
			Help:      "Snapshot scoring latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		AnomalyScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alpha",
			Name:      "anomaly_scores",
			Help:      "Distribution of anomaly scores",
			Buckets:   []float64{-2, -1, -0.5, 0, 0.5, 1, 2, 5, 10},
		}),
		PatternsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alpha",
			Name:      "patterns_recorded_total",
			Help:      "Total number of patterns written back to the corpus",
		}),

		// Risk metrics
		OrdersEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "orders_emitted_total",
			Help:      "Total number of order intents emitted",
		}),
		TradesBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "trades_blocked_total",
			Help:      "Total number of trades blocked by gate",
		}, []string{"gate"}),
		DailyTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "daily_trades",
			Help:      "Number of trades taken in the current UTC day",
		}),

		// Health metrics
		LastMessageTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_message_timestamp",
			Help:      "Unix timestamp of the last processed stream message",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// TrackUptime advances the uptime counter by one interval per tick
// until ctx is cancelled.
func (m *Metrics) TrackUptime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UptimeSeconds.Add(interval.Seconds())
		}
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMessage increments the processed counter for a message type.
func RecordMessage(messageType string) {
	DefaultMetrics.MessagesProcessed.WithLabelValues(messageType).Inc()
}

// RecordParseError records a malformed message.
func RecordParseError(messageType string) {
	DefaultMetrics.MessageParseErrors.WithLabelValues(messageType).Inc()
}

// RecordSnapshotCached increments the cached counter for a mint style.
func RecordSnapshotCached(mintStyle string) {
	DefaultMetrics.SnapshotsCached.WithLabelValues(mintStyle).Inc()
}

// RecordSnapshotDropped increments the dropped counter for a reason.
func RecordSnapshotDropped(reason string) {
	DefaultMetrics.SnapshotsDropped.WithLabelValues(reason).Inc()
}

// RecordPersistError records a storage write failure.
func RecordPersistError(store string) {
	DefaultMetrics.PersistErrors.WithLabelValues(store).Inc()
}

// RecordScore observes a scoring pass.
func RecordScore(score, latencySeconds float64) {
	DefaultMetrics.AnomalyScores.Observe(score)
	DefaultMetrics.ScoringLatency.Observe(latencySeconds)
}

// RecordTradeBlocked increments the blocked counter for a gate.
func RecordTradeBlocked(gate string) {
	DefaultMetrics.TradesBlocked.WithLabelValues(gate).Inc()
}
