package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivated,
		subscriptionsExpired,
	)
}

var (
	subscriptionsActivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscribers transitioned to active.",
		},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscribers transitioned to expired by the sweeper.",
		},
	)
)

func IncSubscriptionActivated() { subscriptionsActivated.Inc() }

func IncSubscriptionsExpired(n int) { subscriptionsExpired.Add(float64(n)) }
