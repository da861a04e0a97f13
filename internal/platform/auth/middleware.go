package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	UserNameKey contextKey = "user_name"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// ValidRole reports whether role is one of the three account roles.
func ValidRole(role string) bool {
	return role == RolePatient || role == RoleDoctor || role == RoleAdmin
}

// DevUserID is the identity assumed by DevAuthMiddleware when no
// X-User-ID header is sent.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Claims carries the account id in Subject. External identity providers that
// emit a roles array are accepted as well.
type Claims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Name  string   `json:"name,omitempty"`
}

// PrimaryRole returns Role, falling back to the first known entry of Roles.
func (c *Claims) PrimaryRole() string {
	if c.Role != "" {
		return c.Role
	}
	for _, r := range c.Roles {
		if ValidRole(r) {
			return r
		}
	}
	return ""
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey selects HS256 verification; tokens from TokenIssuer use it.
	SigningKey []byte
	Skipper    func(echo.Context) bool
}

// Caller is the authenticated principal of a request.
type Caller struct {
	ID   uuid.UUID
	Role string
	Name string
}

func (c Caller) IsAdmin() bool  { return c.Role == RoleAdmin }
func (c Caller) IsDoctor() bool { return c.Role == RoleDoctor }

// WithCaller stores the caller on ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, caller.ID)
	ctx = context.WithValue(ctx, UserRoleKey, caller.Role)
	ctx = context.WithValue(ctx, UserNameKey, caller.Name)
	return ctx
}

// CallerFromContext returns the caller set by one of the auth middlewares.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return Caller{}, false
	}
	role, _ := ctx.Value(UserRoleKey).(string)
	name, _ := ctx.Value(UserNameKey).(string)
	return Caller{ID: id, Role: role, Name: name}, true
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	uid, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func setCaller(c echo.Context, caller Caller) {
	c.SetRequest(c.Request().WithContext(WithCaller(c.Request().Context(), caller)))
	c.Set("user_id", caller.ID.String())
	c.Set("user_role", caller.Role)
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	// Without an explicit JWKS URL, try OIDC discovery from the issuer.
	resolvedJWKSURL := cfg.JWKSURL
	if resolvedJWKSURL == "" && cfg.Issuer != "" && len(cfg.SigningKey) == 0 {
		provider, err := NewOIDCProvider(cfg.Issuer)
		if err == nil {
			resolvedJWKSURL = provider.JWKSURI
		}
	}

	var keyFunc jwt.Keyfunc
	methods := []string{"RS256"}
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(t *jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
		methods = []string{"HS256"}
	} else {
		keyFunc = jwksKeyFunc(resolvedJWKSURL)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}
			role := claims.PrimaryRole()
			if !ValidRole(role) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token carries no known role")
			}

			setCaller(c, Caller{ID: id, Role: role, Name: claims.Name})
			return next(c)
		}
	}
}

// DevAuthMiddleware trusts the X-User-ID, X-User-Role and X-User-Name
// headers. Requests without X-User-ID act as DevUserID with the admin role.
func DevAuthMiddleware(skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			h := c.Request().Header
			caller := Caller{ID: DevUserID, Role: RoleAdmin, Name: "Dev Admin"}
			if raw := h.Get("X-User-ID"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid X-User-ID")
				}
				caller = Caller{ID: id, Role: RolePatient, Name: h.Get("X-User-Name")}
				if role := h.Get("X-User-Role"); role != "" {
					if !ValidRole(role) {
						return echo.NewHTTPError(http.StatusUnauthorized, "invalid X-User-Role")
					}
					caller.Role = role
				}
			}

			setCaller(c, caller)
			return next(c)
		}
	}
}
