// Package metrics defines all custom Prometheus metrics for the fleet
// dashboard. It is the single source of truth for metric names, labels,
// and help strings; everything is registered with the default registry at
// import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet"

// ── Reconciliation metrics ────────────────────────────────────────────────────

// UpdatesAppliedTotal counts updates the store applied successfully.
// Label:
//   - kind: update variant ("full_sync", "patch", "raw_report", "sim_tick")
var UpdatesAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_applied_total",
		Help:      "Total number of driver updates applied to the store.",
	},
	[]string{"kind"},
)

// UpdatesRejectedTotal counts updates dropped before reaching the store.
// Label:
//   - reason: short failure description (e.g. "invalid", "unknown_type", "malformed_json")
var UpdatesRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_rejected_total",
		Help:      "Total number of driver updates rejected, by reason.",
	},
	[]string{"reason"},
)

// DriversConnectedTotal counts first sightings of unknown driver ids.
var DriversConnectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drivers_connected_total",
		Help:      "Total number of new-driver arrivals observed by the store.",
	},
)

// DriversTracked is the current number of drivers in the store.
var DriversTracked = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "drivers_tracked",
		Help:      "Current number of driver records in the store.",
	},
)

// ── Animation metrics ─────────────────────────────────────────────────────────

// AnimationsActive is the number of marker animations currently in flight.
var AnimationsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "animations_active",
		Help:      "Current number of in-flight marker animations.",
	},
)

// ── Feed metrics ──────────────────────────────────────────────────────────────

// FeedReconnectsTotal counts automatic reconnect attempts after unclean closes.
var FeedReconnectsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_reconnects_total",
		Help:      "Total number of scheduled feed reconnect attempts.",
	},
)

// FeedExhaustedTotal counts times the reconnect budget ran out.
var FeedExhaustedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_exhausted_total",
		Help:      "Total number of times the feed retry budget was exhausted.",
	},
)

// ── Ingest queue metrics ──────────────────────────────────────────────────────

// IngestQueueDepth is the number of updates waiting in the ingest queue.
var IngestQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_queue_depth",
		Help:      "Current number of updates pending in the ingest queue.",
	},
)

// IngestDroppedTotal counts updates dropped because the queue was full.
var IngestDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_dropped_total",
		Help:      "Total number of updates dropped due to a full ingest queue.",
	},
)

// ── Stream metrics ────────────────────────────────────────────────────────────

// StreamClients is the number of dashboard websocket clients connected.
var StreamClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Current number of connected dashboard stream clients.",
	},
)
