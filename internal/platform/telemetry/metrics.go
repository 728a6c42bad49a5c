// Package telemetry exposes Prometheus metrics for the HTTP surface, the
// booking engine and the clinical record.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "odonto"

// Booking outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics owns a private registry. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	bookings          *prometheus.CounterVec
	bookingRejections *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	slotQueries       prometheus.Histogram
	slotsOffered      prometheus.Histogram

	clinicalEvents    *prometheus.CounterVec
	unknownConditions prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"operation", "outcome"}),
		bookingRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejections_total",
			Help:      "Rejected bookings by reason",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status changes by target status",
		}, []string{"status"}),
		slotQueries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_query_duration_seconds",
			Help:      "Time to materialize bookable slots for one practitioner day",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		slotsOffered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_offered",
			Help:      "Bookable slots returned per query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		clinicalEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clinical_events_total",
			Help:      "Clinical events appended by condition",
		}, []string{"condition"}),
		unknownConditions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_conditions_total",
			Help:      "Stored events whose condition is not in the current vocabulary",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.inFlight,
		m.bookings, m.bookingRejections, m.transitions, m.slotQueries, m.slotsOffered,
		m.clinicalEvents, m.unknownConditions,
	)
	return m
}

// Register adds extra collectors such as database pool gauges.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	if m == nil {
		return
	}
	m.registry.MustRegister(cs...)
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// BookingAccepted counts a successful create or reschedule.
func (m *Metrics) BookingAccepted(operation string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(operation, OutcomeAccepted).Inc()
}

// BookingRejected counts a business-rule rejection.
func (m *Metrics) BookingRejected(operation, reason string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(operation, OutcomeRejected).Inc()
	m.bookingRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) BookingFailed(operation string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(operation, OutcomeFailed).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) SlotsQueried(d time.Duration, offered int) {
	if m == nil {
		return
	}
	m.slotQueries.Observe(d.Seconds())
	m.slotsOffered.Observe(float64(offered))
}

func (m *Metrics) ClinicalEventRecorded(condition string) {
	if m == nil {
		return
	}
	m.clinicalEvents.WithLabelValues(condition).Inc()
}

func (m *Metrics) UnknownConditionSeen() {
	if m == nil {
		return
	}
	m.unknownConditions.Inc()
}
