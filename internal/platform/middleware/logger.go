package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// Logger emits one structured line per request. Static assets are logged at
// debug level to keep page loads from drowning out API traffic.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status below is final.
				c.Error(err)
			}

			evt := logger.Info()
			switch {
			case err != nil:
				evt = logger.Error().Err(err)
			case isStaticPath(req.URL.Path):
				evt = logger.Debug()
			}

			evt.
				Str("request_id", RequestIDFrom(c)).
				Str("user_id", auth.UserIDFromContext(c.Request().Context())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return nil
		}
	}
}

func isStaticPath(path string) bool {
	return len(path) >= len("/static/") && path[:len("/static/")] == "/static/"
}
