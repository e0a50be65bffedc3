// Package metrics defines and registers all custom Prometheus metrics for
// orderdesk. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default registry at package init through
// promauto; the reference API exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orderdesk"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionLoginsTotal counts login attempts by outcome.
// Label:
//   - outcome: "ok", "degraded" (token undecodable), "rejected", "store_failed"
var SessionLoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "logins_total",
		Help:      "Total number of client login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SessionLogoutsTotal counts sessions ended on the client.
// Label:
//   - reason: "logout" (user initiated) or "expired" (rejected by the api)
var SessionLogoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "logouts_total",
		Help:      "Total number of client sessions ended, by reason.",
	},
	[]string{"reason"},
)

// ── Query cache metrics ───────────────────────────────────────────────────────

// CacheLookupsTotal counts Fetch decisions.
// Labels:
//   - key: query key (e.g. "orders")
//   - result: "hit" (served from cache), "join" (shared in-flight call), "miss" (new request)
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Total number of query cache lookups, by key and result.",
	},
	[]string{"key", "result"},
)

// CacheRequestsTotal counts network requests issued by the cache.
// Labels:
//   - key: query key
//   - outcome: "success", "error" or "discarded" (superseded by a newer request)
var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of fetches issued by the query cache, by outcome.",
	},
	[]string{"key", "outcome"},
)

// CacheInvalidationsTotal counts entries marked stale after a mutation.
var CacheInvalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Total number of query cache invalidations, by key.",
	},
	[]string{"key"},
)

// CacheFetchDuration measures a single fetch from issue to settle.
var CacheFetchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of query cache fetches.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"key"},
)

// ── Reference API metrics ─────────────────────────────────────────────────────

// OrdersCreatedTotal counts orders created by the reference API.
var OrdersCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	},
)

// UsersCreatedTotal counts accounts created by the reference API.
// Label:
//   - user_type: "default" or "admin"
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "users_created_total",
		Help:      "Total number of user accounts created, by user type.",
	},
	[]string{"user_type"},
)

// LoginAttemptsTotal counts login requests handled by the reference API.
// Label:
//   - result: "ok", "unknown_user", "bad_password"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "login_attempts_total",
		Help:      "Total number of login requests, by result.",
	},
	[]string{"result"},
)
