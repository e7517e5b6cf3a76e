package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RolePatient  = "patient"
	RoleDoctor   = "doctor"
	RoleHospital = "hospital"
)

// NormalizeRole maps the stored role onto one of the known roles. The signup
// form historically called patients "citizen", and accounts created before
// roles existed carry no role at all; both are patients.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", RolePatient, "citizen":
		return RolePatient
	case RoleDoctor:
		return RoleDoctor
	case RoleHospital:
		return RoleHospital
	default:
		return strings.ToLower(strings.TrimSpace(role))
	}
}

// RequireRole returns middleware that checks if the user has one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
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
