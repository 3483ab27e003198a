// Package metrics holds the Prometheus collectors shared by the API process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Purchase metrics
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_reconcile_total",
			Help: "Purchase reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	EntitlementsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_entitlements_granted_total",
			Help: "Library entries created",
		},
	)

	SalesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_sales_recorded_total",
			Help: "Sale records written",
		},
	)

	CheckoutSessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_checkout_sessions_created_total",
			Help: "Checkout sessions opened with the payment provider",
		},
	)

	// Auth metrics
	WalletLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_wallet_logins_total",
			Help: "Wallet signature verifications by result",
		},
		[]string{"result"},
	)

	PermissionDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_permission_denied_total",
			Help: "Refused writes by operation",
		},
		[]string{"operation"},
	)

	// Mirror metrics
	MirrorConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_mirror_connections",
			Help: "Open websocket mirror connections",
		},
	)
)

// Reconcile outcomes.
const (
	OutcomeGranted      = "granted"
	OutcomeDuplicate    = "duplicate"
	OutcomeNotPaid      = "not_paid"
	OutcomeNotFound     = "not_found"
	OutcomeMalformed    = "malformed"
	OutcomeStoreFailure = "store_failure"
)
