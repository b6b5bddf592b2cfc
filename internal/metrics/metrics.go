// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carrental",
		Name:      "bookings_created_total",
		Help:      "Bookings persisted in pending state.",
	})

	BookingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carrental",
		Name:      "bookings_rejected_total",
		Help:      "Booking requests rejected before persistence, by reason.",
	}, []string{"reason"})

	PaymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carrental",
		Name:      "payments_initiated_total",
		Help:      "STK push attempts, by outcome (ok or failed).",
	}, []string{"outcome"})

	PaymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carrental",
		Name:      "payment_callbacks_total",
		Help:      "Provider callbacks, by result (succeeded, failed, duplicate, unmatched).",
	}, []string{"result"})
)
