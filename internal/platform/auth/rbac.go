package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks the caller holds one of roles.
// Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
			if has == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if has == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireAuthenticated rejects requests that reached the handler chain
// without a caller, e.g. when a route was wrongly listed as public.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CallerFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// ActiveChecker reports whether an account is still enabled.
type ActiveChecker interface {
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// RequireActive rejects callers whose account was deactivated after their
// token was issued. Requests without a caller, or matched by skipper, pass
// through untouched.
func RequireActive(checker ActiveChecker, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			caller, ok := CallerFromContext(c.Request().Context())
			if !ok {
				return next(c)
			}
			active, err := checker.IsActive(c.Request().Context(), caller.ID)
			if err != nil {
				return err
			}
			if !active {
				return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
			}
			return next(c)
		}
	}
}
