package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = echo.HeaderXRequestID

const requestIDKey = "request_id"

// RequestID propagates an incoming X-Request-ID or mints a new one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFrom returns the id assigned by RequestID, or "" outside of it.
func RequestIDFrom(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}
