package services

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders inserted into the record store.",
	})

	ordersDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Orders transitioned to deleted.",
	})

	// result: hit|miss|error. Errors are served as misses.
	idemLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_idempotency_lookups_total",
		Help: "Idempotency cache lookups on order creation by result.",
	}, []string{"result"})

	idemWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_idempotency_writes_failed_total",
		Help: "Create responses that could not be written to the idempotency cache.",
	})
)

func init() {
	prometheus.MustRegister(ordersCreated, ordersDeleted, idemLookups, idemWriteFailures)
}
