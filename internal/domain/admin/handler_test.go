package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/carebook/internal/platform/auth"
)

// newTestServer mounts the admin routes behind a middleware that installs
// the given caller.
func newTestServer(caller auth.Caller) (*echo.Echo, *fakeAccounts) {
	svc, accounts, _ := newTestService()
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithCaller(req.Context(), caller)))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)
	return e, accounts
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandler_RequiresAdmin(t *testing.T) {
	for _, role := range []string{auth.RolePatient, auth.RoleDoctor} {
		e, _ := newTestServer(auth.Caller{ID: uuid.New(), Role: role})
		if rec := serve(e, http.MethodGet, "/api/v1/admin/stats"); rec.Code != http.StatusForbidden {
			t.Errorf("role %s: expected 403, got %d", role, rec.Code)
		}
	}
}

func TestHandler_Stats(t *testing.T) {
	e, accounts := newTestServer(auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin})
	accounts.add("Rahul", auth.RolePatient, true)

	rec := serve(e, http.MethodGet, "/api/v1/admin/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if st.Patients != 1 || st.Appointments != 7 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestHandler_ListUsers(t *testing.T) {
	e, accounts := newTestServer(auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin})
	accounts.add("Rahul", auth.RolePatient, true)
	accounts.add("Sarah", auth.RoleDoctor, true)

	rec := serve(e, http.MethodGet, "/api/v1/admin/users?role=doctor&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data  []map[string]interface{} `json:"data"`
		Total int                      `json:"total"`
		Limit int                      `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Limit != 10 {
		t.Errorf("unexpected page %+v", resp)
	}
	if _, ok := resp.Data[0]["password_hash"]; ok {
		t.Error("password hash must not be rendered")
	}
}

func TestHandler_ToggleAccess(t *testing.T) {
	e, accounts := newTestServer(auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin})
	u := accounts.add("Rahul", auth.RolePatient, true)

	rec := serve(e, http.MethodPut, "/api/v1/admin/users/"+u.ID.String()+"/toggle-access")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if accounts.users[u.ID].IsActive {
		t.Error("expected account to be deactivated")
	}

	if rec := serve(e, http.MethodPut, "/api/v1/admin/users/"+uuid.New().String()+"/toggle-access"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodPut, "/api/v1/admin/users/bad/toggle-access"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_AuditLogs(t *testing.T) {
	e, _ := newTestServer(auth.Caller{ID: uuid.New(), Role: auth.RoleAdmin})
	rec := serve(e, http.MethodGet, "/api/v1/admin/audit-logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var logs []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(logs) != 1 || logs[0]["user_name"] != "Dr. Sarah Smith" {
		t.Errorf("unexpected logs %v", logs)
	}
}
