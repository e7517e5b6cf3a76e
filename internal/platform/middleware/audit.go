package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// AccessEntry records one access to a patient's health record.
type AccessEntry struct {
	UserID     string
	Role       string
	Action     string // view, toggle, filter, refresh
	Path       string
	Method     string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AccessRecorder persists access entries somewhere other than the log.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

type AccessRecorderFunc func(entry AccessEntry) error

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) error {
	return f(entry)
}

// Audit logs every request that reads or changes dashboard state.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			ctx := req.Context()
			entry := AccessEntry{
				UserID:     auth.UserIDFromContext(ctx),
				Role:       auth.RoleFromContext(ctx),
				Action:     accessAction(req.Method, path),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				RequestID:  RequestIDFrom(c),
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record access entry")
				}
			}

			logger.Info().
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return path == "/dashboard" || strings.HasPrefix(path, "/dashboard/") ||
		strings.HasPrefix(path, "/api/v1/")
}

func accessAction(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/toggle"):
		return "toggle"
	case strings.HasSuffix(path, "/refresh"):
		return "refresh"
	case strings.HasSuffix(path, "/filters"):
		return "filter"
	case method == http.MethodGet || method == http.MethodHead:
		return "view"
	default:
		return strings.ToLower(method)
	}
}
