package state

import "github.com/prometheus/client_golang/prometheus"

var (
	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_store_rollbacks_total",
			Help: "Optimistic mutations rolled back after a failed call, by store and operation.",
		},
		[]string{"store", "op"},
	)

	staleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_store_stale_responses_total",
			Help: "Responses discarded because the store moved on while they were in flight.",
		},
		[]string{"store"},
	)

	droppedRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_counter_dropped_refreshes_total",
			Help: "Counter refreshes dropped because one was already in flight.",
		},
		[]string{"counter"},
	)
)

func init() {
	prometheus.MustRegister(rollbacksTotal, staleResponsesTotal, droppedRefreshesTotal)
}

// ObserveRollback counts a rolled back optimistic mutation.
func ObserveRollback(store, op string) {
	rollbacksTotal.WithLabelValues(store, op).Inc()
}

// ObserveStale counts a discarded stale response.
func ObserveStale(store string) {
	staleResponsesTotal.WithLabelValues(store).Inc()
}
