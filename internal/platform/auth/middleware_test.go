package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (Caller, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/appointments")

	var got Caller
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		got, _ = CallerFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)
	return got, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleDoctor,
		Name: "Sarah Smith",
	}, testSigningKey)

	got, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != userID {
		t.Errorf("expected user %s, got %s", userID, got.ID)
	}
	if got.Role != RoleDoctor || !got.IsDoctor() {
		t.Errorf("expected doctor role, got %q", got.Role)
	}
	if got.Name != "Sarah Smith" {
		t.Errorf("expected name Sarah Smith, got %q", got.Name)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: RolePatient,
	}, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Role:             RolePatient,
	}, []byte("another-key-entirely-different-0"))

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_NonUUIDSubject(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "dev-user"},
		Role:             RolePatient,
	}, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Role:             "nurse",
	}, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: "someone-else"},
		Role:             RolePatient,
	}, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "carebook"}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestClaims_PrimaryRole(t *testing.T) {
	c := Claims{Roles: []string{"uma_authorization", RoleAdmin}}
	if c.PrimaryRole() != RoleAdmin {
		t.Errorf("expected admin, got %q", c.PrimaryRole())
	}
	c.Role = RolePatient
	if c.PrimaryRole() != RolePatient {
		t.Errorf("expected explicit role to win, got %q", c.PrimaryRole())
	}
	if (&Claims{}).PrimaryRole() != "" {
		t.Error("expected empty role")
	}
}

func runDev(t *testing.T, headers map[string]string) (Caller, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Caller
	err := DevAuthMiddleware(nil)(func(c echo.Context) error {
		got, _ = CallerFromContext(c.Request().Context())
		return nil
	})(c)
	return got, err
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	got, err := runDev(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != DevUserID || !got.IsAdmin() {
		t.Errorf("expected dev admin, got %+v", got)
	}
}

func TestDevAuthMiddleware_Headers(t *testing.T) {
	id := uuid.New()
	got, err := runDev(t, map[string]string{
		"X-User-ID":   id.String(),
		"X-User-Role": RoleDoctor,
		"X-User-Name": "John Doe",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != id || got.Role != RoleDoctor || got.Name != "John Doe" {
		t.Errorf("unexpected caller %+v", got)
	}
}

func TestDevAuthMiddleware_DefaultsToPatient(t *testing.T) {
	got, err := runDev(t, map[string]string{"X-User-ID": uuid.NewString()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != RolePatient {
		t.Errorf("expected patient role, got %q", got.Role)
	}
}

func TestDevAuthMiddleware_InvalidHeaders(t *testing.T) {
	_, err := runDev(t, map[string]string{"X-User-ID": "not-a-uuid"})
	expectStatus(t, err, http.StatusUnauthorized)

	_, err = runDev(t, map[string]string{"X-User-ID": uuid.NewString(), "X-User-Role": "root"})
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestCallerFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := CallerFromContext(req.Context()); ok {
		t.Error("expected no caller in empty context")
	}
	if UserIDFromContext(req.Context()) != uuid.Nil {
		t.Error("expected nil user id")
	}
}
