package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// Page is the data handed to the "dashboard" template.
type Page struct {
	View   *View
	Email  string
	Fields []string
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPages mounts the server-rendered dashboard. Every page route is
// restricted to patients.
func (h *Handler) RegisterPages(e *echo.Echo) {
	patient := auth.RequireRole(auth.RolePatient)
	e.GET("/dashboard", h.Page, patient)
	e.POST("/dashboard/visits/:id/toggle", h.ToggleForm, patient)
	e.POST("/dashboard/refresh", h.RefreshForm, patient)
	e.POST("/signout", h.SignOut)
}

// RegisterAPI mounts the JSON dashboard API on g.
func (h *Handler) RegisterAPI(g *echo.Group) {
	dash := g.Group("/dashboard", auth.RequireRole(auth.RolePatient))
	dash.GET("", h.GetDashboard)
	dash.POST("/visits/:id/toggle", h.ToggleVisit)
	dash.PUT("/filters", h.UpdateFilters)
	dash.DELETE("/filters", h.ClearFilters)
	dash.POST("/refresh", h.Refresh)
}

// Page renders the dashboard. Filter fields present in the query string
// replace the stored selection; ?clear=1 resets it.
func (h *Handler) Page(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserIDFromContext(ctx)

	var (
		view *View
		err  error
	)
	q := c.QueryParams()
	switch {
	case q.Get("clear") != "":
		view, err = h.svc.ClearFilters(ctx, uid)
	case hasFilterParams(q):
		view, err = h.svc.UpdateFilter(ctx, uid, filterParams(q))
	default:
		view, err = h.svc.View(ctx, uid)
	}
	if err != nil {
		return httpError(err)
	}
	return c.Render(http.StatusOK, "dashboard", Page{
		View:   view,
		Email:  auth.EmailFromContext(ctx),
		Fields: FilterFields,
	})
}

func (h *Handler) ToggleForm(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.svc.ToggleVisit(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		return httpError(err)
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard#visit-"+url.PathEscape(id))
}

func (h *Handler) RefreshForm(c echo.Context) error {
	if _, err := h.svc.Refresh(c.Request().Context(), auth.UserIDFromContext(c.Request().Context())); err != nil {
		return httpError(err)
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// SignOut ends the dashboard session and drops the ID token cookie.
func (h *Handler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		if err := h.svc.EndSession(ctx, uid); err != nil {
			return httpError(err)
		}
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) GetDashboard(c echo.Context) error {
	view, err := h.svc.View(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ToggleVisit(c echo.Context) error {
	view, err := h.svc.ToggleVisit(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateFilters takes a JSON object of field -> value. Empty values clear
// their field.
func (h *Handler) UpdateFilters(c echo.Context) error {
	var fields map[string]string
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object of strings")
	}
	view, err := h.svc.UpdateFilter(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), fields)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ClearFilters(c echo.Context) error {
	view, err := h.svc.ClearFilters(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Refresh(c echo.Context) error {
	view, err := h.svc.Refresh(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func hasFilterParams(q url.Values) bool {
	for _, f := range FilterFields {
		if _, ok := q[f]; ok {
			return true
		}
	}
	return false
}

func filterParams(q url.Values) map[string]string {
	fields := make(map[string]string)
	for _, f := range FilterFields {
		if _, ok := q[f]; ok {
			fields[f] = q.Get(f)
		}
	}
	return fields
}

func httpError(err error) error {
	switch {
	case IsValidationError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownInteraction):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingUser):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
