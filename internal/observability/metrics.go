package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shows_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shows_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shows_outbox_lag_seconds",
			Help: "Age of the oldest event published in the last relay pass",
		},
	)

	RabbitPublishRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shows_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shows_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	ReservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shows_reservation_transitions_total",
			Help: "Committed reservation status changes by target status",
		},
		[]string{"to"},
	)

	InventoryConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shows_inventory_conflicts_total",
			Help: "Claims rejected because inventory was taken or exhausted",
		},
		[]string{"kind"},
	)

	InventoryDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shows_inventory_drift",
			Help: "Rows violating inventory invariants at the last audit",
		},
		[]string{"check"},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, DBTxDuration, OutboxLag, RabbitPublishRetries, RateLimitExceeded,
			ReservationTransitions, InventoryConflicts, InventoryDrift)
	})
}
