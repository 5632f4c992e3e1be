package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	BookingConfirmed = "confirmed"
	BookingRejected  = "rejected"
	BookingFailed    = "failed"
)

var (
	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued by confirmed bookings",
		},
	)

	bookingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_booking_duration_seconds",
			Help:    "Time spent admitting a booking, lock wait included",
			Buckets: prometheus.DefBuckets,
		},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_scans_total",
			Help: "Check-in attempts by path and result",
		},
		[]string{"method", "status"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

func RecordBooking(outcome string, quantity int, took time.Duration) {
	bookings.WithLabelValues(outcome).Inc()
	bookingDuration.Observe(took.Seconds())
	if outcome == BookingConfirmed {
		ticketsIssued.Add(float64(quantity))
	}
}

// RecordScan counts one check-in result. method is "qr", "manual" or "bulk".
func RecordScan(method, status string) {
	scans.WithLabelValues(method, status).Inc()
}

// CollectRuntime samples process gauges until ctx ends.
func CollectRuntime(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		goroutineCount.Set(float64(runtime.NumGoroutine()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
