package medicalrecord

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
)

func callerRequest(method, body string, caller auth.Caller) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithCaller(req.Context(), caller))
}

func TestHandler_Create(t *testing.T) {
	env := newTestEnv(t, testKey)
	h := NewHandler(env.svc)
	e := echo.New()

	body := `{"appointmentId":"` + env.appt.ID.String() + `","diagnosis":"Flu","prescription":"Rest","notes":"-"}`
	req := callerRequest(http.MethodPost, body, env.doctor)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.20")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"diagnosis":"Flu"`) {
		t.Errorf("expected plaintext diagnosis, got %s", rec.Body.String())
	}
	if len(env.audit.entries) != 1 || env.audit.entries[0].IPAddress != "192.168.1.20" {
		t.Errorf("expected audit entry with client IP, got %+v", env.audit.entries)
	}
}

func TestHandler_Create_Unauthorized(t *testing.T) {
	env := newTestEnv(t, "")
	h := NewHandler(env.svc)
	e := echo.New()

	body := `{"appointmentId":"` + env.appt.ID.String() + `","diagnosis":"Flu"}`
	other := auth.Caller{ID: uuid.New(), Role: auth.RoleDoctor}
	c := e.NewContext(callerRequest(http.MethodPost, body, other), httptest.NewRecorder())

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_ListMine(t *testing.T) {
	env := newTestEnv(t, "")
	h := NewHandler(env.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(callerRequest(http.MethodGet, "", auth.Caller{ID: env.patientID, Role: auth.RolePatient}), rec)
	if err := h.ListMine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}
