package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/signup"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

type welcomePage struct {
	Label     string
	Dashboard bool
}

// RegisterRoutes mounts the landing page, the post-signup pages and the
// static assets.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/", Landing)
	e.StaticFS("/static", Static())
	for _, role := range signup.Roles {
		e.GET(signup.RedirectPath(role), welcome(role))
	}
}

func Landing(c echo.Context) error {
	return c.Render(http.StatusOK, "landing", nil)
}

// welcome confirms a new account. Profile creation itself lives in the
// records service; patients continue to their dashboard.
func welcome(role signup.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		current := auth.RoleFromContext(c.Request().Context())
		return c.Render(http.StatusOK, "welcome", welcomePage{
			Label:     role.Label(),
			Dashboard: current == auth.RolePatient,
		})
	}
}
