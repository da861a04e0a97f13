// Package telemetry exposes Prometheus metrics for the HTTP layer, the
// database pool, notification fan-out and the appointment lifecycle.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/middleware"
)

const namespace = "carebook"

// Metrics owns every collector the service registers.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	notifications *prometheus.CounterVec
	phiAccess     *prometheus.CounterVec
	dbPool        *prometheus.GaugeVec

	appointmentsCreated *prometheus.CounterVec
	transitions         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Pass a
// fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications written by fan-out, by outcome.",
		}, []string{"event", "severity", "outcome"}),
		phiAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_access_total",
			Help:      "Audited accesses to appointment and medical-record routes.",
		}, []string{"resource", "action", "role"}),
		dbPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "Database pool connections by state, sampled by the health probe.",
		}, []string{"state"}),
		appointmentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_created_total",
			Help:      "Appointments created, by urgency of the reason.",
		}, []string{"severity"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status changes.",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.activeRequests,
		m.notifications,
		m.phiAccess,
		m.dbPool,
		m.appointmentsCreated,
		m.transitions,
	)
	return m
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}

			// Route pattern keeps label cardinality bounded.
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

// Handler serves the gatherer in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// NotificationDelivered counts one fan-out write. outcome is "sent" or "failed".
func (m *Metrics) NotificationDelivered(event, severity, outcome string) {
	m.notifications.WithLabelValues(event, severity, outcome).Inc()
}

// AppointmentCreated counts a new appointment by the urgency of its reason.
func (m *Metrics) AppointmentCreated(severity string) {
	m.appointmentsCreated.WithLabelValues(severity).Inc()
}

func (m *Metrics) AppointmentTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObservePool is a db.StatsObserver.
func (m *Metrics) ObservePool(s *db.PoolStats) {
	m.dbPool.WithLabelValues("total").Set(float64(s.TotalConns))
	m.dbPool.WithLabelValues("idle").Set(float64(s.IdleConns))
	m.dbPool.WithLabelValues("acquired").Set(float64(s.AcquiredConns))
	m.dbPool.WithLabelValues("max").Set(float64(s.MaxConns))
}

// RecordAccess makes Metrics a middleware.AuditRecorder.
func (m *Metrics) RecordAccess(entry middleware.AuditEntry) error {
	role := entry.UserRole
	if role == "" {
		role = "anonymous"
	}
	m.phiAccess.WithLabelValues(entry.Resource, entry.Action, role).Inc()
	return nil
}

var (
	_ db.StatsObserver         = (*Metrics)(nil).ObservePool
	_ middleware.AuditRecorder = (*Metrics)(nil)
)
