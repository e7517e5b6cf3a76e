package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for pages and JSON that carry
// patient records. Pages may load their own stylesheets and the Firebase
// client SDK used by the signup form; nothing else.
func SecurityHeaders() echo.MiddlewareFunc {
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' https://www.gstatic.com",
		"connect-src 'self' https://identitytoolkit.googleapis.com https://securetoken.googleapis.com",
		"frame-src https://*.firebaseapp.com https://www.google.com",
		"img-src 'self' data: https:",
		"frame-ancestors 'none'",
	}, "; ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", csp)
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "same-origin")

			// Health records must not end up in shared caches.
			if !strings.HasPrefix(c.Request().URL.Path, "/static/") {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}
