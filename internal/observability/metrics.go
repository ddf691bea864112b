package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcore_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatcore_db_tx_seconds",
			Help:    "Duration of ledger transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_holds_created_total",
			Help: "Holds granted",
		},
	)

	HoldConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_hold_conflicts_total",
			Help: "Hold requests refused because a seat was unavailable",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_holds_expired_total",
			Help: "Holds reclaimed by the sweeper",
		},
	)

	BookingsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_bookings_committed_total",
			Help: "Holds converted into bookings",
		},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_tx_retries_total",
			Help: "Ledger transactions re-run after a serialization conflict",
		},
	)

	PublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_publish_retries_total",
			Help: "Broker publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatcore_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
