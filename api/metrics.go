/*
metrics.go - Prometheus counters for the cash and occupancy flows

Counters only; the interesting rates (movements per day, booking
rejections) fall out of these under rate() in the usual way.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMovementsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "movements_posted_total",
		Help:      "Cash movements posted, by kind.",
	}, []string{"kind"})

	metricDaysClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "days_closed_total",
		Help:      "Business days closed.",
	})

	metricBookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "court_bookings_total",
		Help:      "Court booking attempts, by outcome.",
	}, []string{"outcome"})

	metricLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "logins_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})
)
