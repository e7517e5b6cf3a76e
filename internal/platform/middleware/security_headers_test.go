package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_Page(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/dashboard", nil), rec)

	SecurityHeaders()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)

	h := rec.Header()
	if h.Get("X-Frame-Options") != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", h.Get("X-Frame-Options"))
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store for record pages, got %q", h.Get("Cache-Control"))
	}
	if !strings.Contains(h.Get("Content-Security-Policy"), "frame-ancestors 'none'") {
		t.Errorf("unexpected CSP %q", h.Get("Content-Security-Policy"))
	}
}

func TestSecurityHeaders_StaticCacheable(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/static/app.css", nil), rec)

	SecurityHeaders()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)

	if rec.Header().Get("Cache-Control") != "" {
		t.Errorf("expected static assets to stay cacheable, got %q", rec.Header().Get("Cache-Control"))
	}
}
