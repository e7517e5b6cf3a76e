package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newETagServer(cfg ETagConfig) *echo.Echo {
	e := echo.New()
	e.Use(ETag(cfg))
	e.GET("/api/v1/dashboard", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"state": "ready"})
	})
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no"})
	})
	e.POST("/api/v1/dashboard/refresh", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"state": "ready"})
	})
	return e
}

func TestETag_SetsValidators(t *testing.T) {
	e := newETagServer(DefaultETagConfig())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "private, no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Accept, Authorization, Cookie", rec.Header().Get("Vary"))
	assert.Contains(t, rec.Body.String(), `"state":"ready"`)
}

func TestETag_NotModified(t *testing.T) {
	e := newETagServer(DefaultETagConfig())

	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("If-None-Match", `"other", W/`+etag)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestETag_SkipsErrorsAndWrites(t *testing.T) {
	e := newETagServer(DefaultETagConfig())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestBuildCacheControl(t *testing.T) {
	assert.Equal(t, "private, max-age=60", buildCacheControl(ETagConfig{Private: true, MaxAge: 60}))
	assert.Equal(t, "no-cache", buildCacheControl(ETagConfig{}))
}

func TestETagMatch(t *testing.T) {
	assert.True(t, etagMatch("*", `"abc"`))
	assert.True(t, etagMatch(`"x", "abc"`, `"abc"`))
	assert.True(t, etagMatch(`W/"abc"`, `"abc"`))
	assert.False(t, etagMatch(`"x"`, `"abc"`))
	assert.False(t, etagMatch("", `"abc"`))
}
