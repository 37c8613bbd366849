package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villa",
			Name:      "booking_operations_total",
			Help:      "Booking operations by name and result code.",
		},
		[]string{"op", "result"},
	)

	holdsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "villa",
			Name:      "holds_released_total",
			Help:      "Expired holds cancelled by the sweeper.",
		},
	)

	availabilityCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villa",
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "villa",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingOps, holdsReleased, availabilityCache, httpDuration)
	})
}

// IncBookingOp counts one booking operation; result is "ok" or an error code.
func IncBookingOp(op, result string) {
	bookingOps.WithLabelValues(op, result).Inc()
}

func AddHoldsReleased(n int64) {
	holdsReleased.Add(float64(n))
}

func IncCache(outcome string) {
	availabilityCache.WithLabelValues(outcome).Inc()
}

func ObserveHTTP(method, route, status string, d time.Duration) {
	httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
