package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/middleware"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/api/v1/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	for _, p := range []string{"/api/v1/appointments/a", "/api/v1/appointments/b", "/api/v1/fail"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	ok := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/appointments/:id", "200"))
	if ok != 2 {
		t.Errorf("expected 2 requests on route pattern, got %v", ok)
	}
	notFound := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/fail", "404"))
	if notFound != 1 {
		t.Errorf("expected 1 404, got %v", notFound)
	}
	if got := testutil.ToFloat64(m.activeRequests); got != 0 {
		t.Errorf("expected no active requests after completion, got %v", got)
	}
}

func TestNotificationDelivered(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.NotificationDelivered("appointment_created", "critical", "sent")
	m.NotificationDelivered("appointment_created", "critical", "sent")
	m.NotificationDelivered("appointment_created", "info", "failed")

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("appointment_created", "critical", "sent")); got != 2 {
		t.Errorf("expected 2 sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("appointment_created", "info", "failed")); got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
}

func TestAppointmentCounters(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.AppointmentCreated("warning")
	m.AppointmentTransition("Pending", "Approved")

	if got := testutil.ToFloat64(m.appointmentsCreated.WithLabelValues("warning")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("Pending", "Approved")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestObservePool(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObservePool(&db.PoolStats{TotalConns: 7, IdleConns: 4, AcquiredConns: 3, MaxConns: 20})

	want := map[string]float64{"total": 7, "idle": 4, "acquired": 3, "max": 20}
	for state, v := range want {
		if got := testutil.ToFloat64(m.dbPool.WithLabelValues(state)); got != v {
			t.Errorf("%s: expected %v, got %v", state, v, got)
		}
	}
}

func TestRecordAccess(t *testing.T) {
	m, _ := newTestMetrics(t)
	_ = m.RecordAccess(middleware.AuditEntry{Resource: "medical-records", Action: "create", UserRole: "doctor"})
	_ = m.RecordAccess(middleware.AuditEntry{Resource: "appointments", Action: "read"})

	if got := testutil.ToFloat64(m.phiAccess.WithLabelValues("medical-records", "create", "doctor")); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.phiAccess.WithLabelValues("appointments", "read", "anonymous")); got != 1 {
		t.Errorf("expected anonymous role, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.NotificationDelivered("status_updated", "warning", "sent")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	if err := Handler(reg)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `carebook_notifications_total{event="status_updated",outcome="sent",severity="warning"} 1`) {
		t.Errorf("expected notification counter in exposition, got:\n%s", body)
	}
}
