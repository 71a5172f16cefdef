package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the booking path.
type Metrics struct {
	BookingAttempts   prometheus.Counter
	BookingConflicts  prometheus.Counter
	BookingsConfirmed prometheus.Counter
	BookingsFailed    prometheus.Counter
	BookingsCancelled prometheus.Counter
	HoldsExpired      prometheus.Counter
	AcquireDuration   prometheus.Histogram
}

// New registers the instruments against reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BookingAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Total number of booking admission attempts",
		}),

		BookingConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Total number of attempts rejected for inventory conflict",
		}),

		BookingsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_confirmed_total",
			Help: "Total number of bookings confirmed",
		}),

		BookingsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_failed_total",
			Help: "Total number of bookings that ended failed",
		}),

		BookingsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Total number of bookings cancelled by users or admins",
		}),

		HoldsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_holds_expired_total",
			Help: "Total number of holds reclaimed by the expiry sweep",
		}),

		AcquireDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_acquire_hold_duration_seconds",
			Help:    "Duration of inventory hold acquisition",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
