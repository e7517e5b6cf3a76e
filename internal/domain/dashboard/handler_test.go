package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// captureRenderer records the last template render instead of executing it.
type captureRenderer struct {
	name string
	data interface{}
}

func (r *captureRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	r.name = name
	r.data = data
	_, err := io.WriteString(w, "rendered "+name)
	return err
}

// withUser stands in for the auth middleware.
func withUser(uid, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithUser(req.Context(), uid, role, "asha@example.com")))
			return next(c)
		}
	}
}

func newTestServer(t *testing.T, role string) (*echo.Echo, *captureRenderer, *Service) {
	t.Helper()
	svc, _, _, _ := newTestService(t)
	e := echo.New()
	r := &captureRenderer{}
	e.Renderer = r
	e.Use(withUser("uid-1", role))
	h := NewHandler(svc)
	h.RegisterPages(e)
	h.RegisterAPI(e.Group("/api/v1"))
	return e, r, svc
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Page(t *testing.T) {
	e, r, _ := newTestServer(t, auth.RolePatient)

	rec := serve(e, http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard", r.name)

	page, ok := r.data.(Page)
	require.True(t, ok)
	assert.Equal(t, "asha@example.com", page.Email)
	assert.Equal(t, 3, len(page.View.Visits))
	assert.Equal(t, FilterFields, page.Fields)
}

func TestHandler_PageQueryUpdatesFilter(t *testing.T) {
	e, r, _ := newTestServer(t, auth.RolePatient)

	rec := serve(e, http.MethodGet, "/dashboard?doctor=7&hospital=", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := r.data.(Page)
	assert.Len(t, page.View.Visits, 2)

	// Plain reload keeps the selection.
	serve(e, http.MethodGet, "/dashboard", "")
	assert.Len(t, r.data.(Page).View.Visits, 2)

	serve(e, http.MethodGet, "/dashboard?clear=1", "")
	assert.Len(t, r.data.(Page).View.Visits, 3)
}

func TestHandler_PageBadFilter(t *testing.T) {
	e, _, _ := newTestServer(t, auth.RolePatient)
	rec := serve(e, http.MethodGet, "/dashboard?status=someday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_PageRequiresPatient(t *testing.T) {
	e, _, _ := newTestServer(t, auth.RoleDoctor)
	rec := serve(e, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_ToggleForm(t *testing.T) {
	e, r, _ := newTestServer(t, auth.RolePatient)

	rec := serve(e, http.MethodPost, "/dashboard/visits/a/toggle", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard#visit-a", rec.Header().Get(echo.HeaderLocation))

	serve(e, http.MethodGet, "/dashboard", "")
	assert.True(t, r.data.(Page).View.Visits[0].Expanded)

	rec = serve(e, http.MethodPost, "/dashboard/visits/zzz/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RefreshForm(t *testing.T) {
	e, _, _ := newTestServer(t, auth.RolePatient)
	rec := serve(e, http.MethodPost, "/dashboard/refresh", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echo.HeaderLocation))
}

func TestHandler_SignOut(t *testing.T) {
	e, _, svc := newTestServer(t, auth.RolePatient)
	serve(e, http.MethodGet, "/dashboard", "")

	rec := serve(e, http.MethodPost, "/signout", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	cookie := rec.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, auth.SessionCookie+"=")
	assert.Contains(t, cookie, "Max-Age=0")

	// The next session starts with a fresh fetch.
	view, err := svc.View(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, SourceFetch, view.Source)
	assert.Equal(t, StateReady, view.State)
}

func TestHandler_API(t *testing.T) {
	e, _, _ := newTestServer(t, auth.RolePatient)

	rec := serve(e, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ready", got["state"])
	assert.Equal(t, float64(3), got["total_visits"])

	rec = serve(e, http.MethodPost, "/api/v1/dashboard/visits/c/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Visits[2].Expanded)

	rec = serve(e, http.MethodPut, "/api/v1/dashboard/filters", `{"status":"past"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = View{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Visits, 2)
	assert.Equal(t, Filter{FilterStatus: StatusPast}, view.Filter)

	rec = serve(e, http.MethodPut, "/api/v1/dashboard/filters", `{"colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodPut, "/api/v1/dashboard/filters", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodDelete, "/api/v1/dashboard/filters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = View{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Visits, 3)

	rec = serve(e, http.MethodPost, "/api/v1/dashboard/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_APIRequiresPatient(t *testing.T) {
	e, _, _ := newTestServer(t, auth.RoleHospital)
	rec := serve(e, http.MethodGet, "/api/v1/dashboard", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
