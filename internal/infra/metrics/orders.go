package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersTotal,
		providerCallsTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_total",
			Help: "Orders by status transition (created/paid/failed/duplicate_rejected).",
		},
		[]string{"status"},
	)

	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_calls_total",
			Help: "Outbound provider calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func IncOrder(status string) {
	ordersTotal.WithLabelValues(norm(status)).Inc()
}

func IncProviderCall(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	providerCallsTotal.WithLabelValues(norm(op), outcome).Inc()
}
