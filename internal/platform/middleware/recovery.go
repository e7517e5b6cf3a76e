package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs the stack with enough
// request context to find the session that triggered it.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				req := c.Request()
				logger.Error().
					Str("request_id", RequestIDFrom(c)).
					Str("user_id", auth.UserIDFromContext(req.Context())).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
