package records

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the three read endpoints the dashboard consumes. Every
// endpoint answers with a bare JSON array.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.GET("/pdinteraction", h.ListInteractions)
	g.GET("/doctors", h.ListDoctors)
}

func (h *Handler) ListPatients(c echo.Context) error {
	uid := c.QueryParam("firebaseUid")
	if uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "firebaseUid query parameter is required")
	}
	patients, err := h.svc.PatientsByFirebaseUID(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) ListInteractions(c echo.Context) error {
	pid := c.QueryParam("patientId")
	if pid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId query parameter is required")
	}
	interactions, err := h.svc.InteractionsByPatient(c.Request().Context(), pid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, interactions)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doctors)
}
