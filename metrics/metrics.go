package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WalletRecharges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_recharges_total",
			Help: "Number of wallet recharge attempts by outcome",
		},
		[]string{"status"},
	)

	WalletSpends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_spends_total",
			Help: "Number of wallet spend attempts by outcome",
		},
		[]string{"status"},
	)

	PaymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_processing_seconds",
			Help:    "Time taken by the payment processor to settle a charge",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	LessonTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_transitions_total",
			Help: "Number of lesson status changes",
		},
		[]string{"from", "to"},
	)

	PayoutRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_requests_total",
			Help: "Number of payout requests by status they were moved into",
		},
		[]string{"status"},
	)

	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Number of transactional emails by delivery result",
		},
		[]string{"result"},
	)
)

func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

func RegisterWith(r prometheus.Registerer) {
	r.MustRegister(WalletRecharges, WalletSpends, PaymentDuration, LessonTransitions, PayoutRequests, EmailsSent)
}
