package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"from", "to"},
	)

	paymentsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_settled_total",
			Help: "Payments settled by outcome",
		},
		[]string{"type", "outcome"},
	)

	duplicateConfirmations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_duplicate_confirmations_total",
			Help: "Replayed payment confirmations absorbed without crediting",
		},
	)

	overpayments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_overpayments_total",
			Help: "Verified payments that exceeded the outstanding balance",
		},
	)

	dispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_dispatch_failures_total",
			Help: "Events that could not be queued or delivered",
		},
		[]string{"stage"},
	)
)
