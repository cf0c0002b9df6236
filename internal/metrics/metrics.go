package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Reservations counts reserve/release/confirm outcomes.
	// op: reserve|release|confirm, result: ok|invalid|not_found|insufficient|released|busy|error
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockhold_reservations_total",
			Help: "Reservation operations by outcome",
		},
		[]string{"op", "result"},
	)
	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockhold_lock_wait_seconds",
			Help:    "Time spent waiting for a product lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
	SweepTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockhold_sweeper_ticks_total",
			Help: "Expiration sweeper ticks by outcome",
		},
		[]string{"outcome"},
	)
	SweptReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockhold_sweeper_released_total",
			Help: "Expired reservations released by the sweeper",
		},
	)
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockhold_notifier_deliveries_total",
			Help: "Notifier delivery attempts by outcome",
		},
		[]string{"outcome"}, // ok|retry|dropped
	)
)

func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	parts := strings.SplitN(p, "/", 4)
	if len(parts) >= 3 && parts[0] == "api" {
		return parts[0] + "/" + parts[1] + "/" + parts[2]
	}
	if parts[0] == "" {
		return "root"
	}
	return parts[0]
}

func Middleware(c *fiber.Ctx) error {
	if c.Path() == "/metrics" {
		return c.Next()
	}
	start := time.Now()
	err := c.Next()
	path := NormalizePath(c.Path())
	status := strconv.Itoa(c.Response().StatusCode())
	RequestTotal.WithLabelValues(c.Method(), path, status).Inc()
	RequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
	return err
}
