// Package metrics defines and registers all custom Prometheus metrics for the
// storefront data layer. It is the single source of truth for metric names,
// labels, and help strings. Metrics register with the default registry at
// package init via promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// ── Collection store metrics ─────────────────────────────────────────────────

// StorePublishesTotal counts snapshots published to subscribers.
// Labels:
//   - collection: the backing-store key of the collection (e.g. "cart_items")
//   - source: "local" (mutation) or "external" (cross-context reconciliation)
var StorePublishesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_publishes_total",
		Help:      "Total number of collection snapshots published to subscribers.",
	},
	[]string{"collection", "source"},
)

// StoreReconcilesTotal counts externally-observed changes by outcome.
// Label:
//   - result: "applied", "noop" (deep-equal, deduplicated), or "invalid" (unparsable)
var StoreReconcilesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_reconciles_total",
		Help:      "Total number of cross-context reconciliation passes, by result.",
	},
	[]string{"collection", "result"},
)

// StorePersistFailuresTotal counts writes that could not reach the backing
// store. The collection keeps serving from memory when this increments.
var StorePersistFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_persist_failures_total",
		Help:      "Total number of best-effort persistence failures (memory-only degradation).",
	},
	[]string{"collection"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// LoginsTotal counts login attempts by result ("ok" or "rejected").
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Order metrics ────────────────────────────────────────────────────────────

// OrdersCreatedTotal counts orders placed through checkout.
var OrdersCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	},
)
