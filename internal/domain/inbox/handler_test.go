package inbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/notification"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func callerRequest(method, target string, id uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(auth.WithCaller(req.Context(), auth.Caller{ID: id, Role: auth.RolePatient}))
}

func TestHandler_List(t *testing.T) {
	h, e := newTestHandler()
	me := uuid.New()
	h.svc.Deliver(context.Background(), notification.Message{RecipientID: me, Text: "hi", Severity: notification.SeverityInfo})

	rec := httptest.NewRecorder()
	c := e.NewContext(callerRequest(http.MethodGet, "/?limit=5", me), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data   []Notification `json:"data"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
		Unread int            `json:"unread"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Total != 1 || body.Unread != 1 || body.Limit != 5 || len(body.Data) != 1 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_List_Unauthenticated(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := h.List(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_MarkRead_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(callerRequest(http.MethodPut, "/", uuid.New()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.MarkRead(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_MarkRead_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(callerRequest(http.MethodPut, "/", uuid.New()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.MarkRead(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_MarkAllRead(t *testing.T) {
	h, e := newTestHandler()
	me := uuid.New()
	h.svc.Deliver(context.Background(), notification.Message{RecipientID: me, Text: "a", Severity: notification.SeverityInfo})

	rec := httptest.NewRecorder()
	c := e.NewContext(callerRequest(http.MethodPut, "/", me), rec)
	if err := h.MarkAllRead(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["updated"] != float64(1) {
		t.Errorf("expected 1 updated, got %v", body["updated"])
	}
}
