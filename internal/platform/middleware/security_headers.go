package middleware

import (
	"github.com/labstack/echo/v4"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets response headers for a JSON API serving medical data.
// Strict-Transport-Security is only sent when hsts is true, that is when the
// server terminates TLS itself.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	static := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "0",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
		// Responses may carry records or documents.
		"Cache-Control": "no-store",
	}
	if hsts {
		static["Strict-Transport-Security"] = hstsValue
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range static {
				h.Set(k, v)
			}
			return next(c)
		}
	}
}
