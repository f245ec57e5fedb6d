package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhooksTotal,
		activationsFlagged,
	)
}

var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Inbound provider webhooks by result (applied/duplicate/ignored/failed/rejected/unknown_order/amount_mismatch).",
		},
		[]string{"result"},
	)

	activationsFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activations_needing_review_total",
			Help: "Activations where no expiry could be computed from the plan term.",
		},
	)
)

func IncWebhook(result string) {
	webhooksTotal.WithLabelValues(norm(result)).Inc()
}

func IncActivationFlagged() {
	activationsFlagged.Inc()
}
