package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler_Healthy(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	stats := func() *PoolStats { return &PoolStats{TotalConns: 2, MaxConns: 20, Healthy: true} }
	if err := HealthHandler(fakePinger{}, stats)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status string    `json:"status"`
		Pool   PoolStats `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %s", body.Status)
	}
	if body.Pool.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", body.Pool.MaxConns)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	stats := func() *PoolStats { return &PoolStats{TotalConns: 1, Healthy: true} }
	if err := HealthHandler(fakePinger{err: errors.New("connection refused")}, stats)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status string    `json:"status"`
		Error  string    `json:"error"`
		Pool   PoolStats `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "unhealthy" || body.Error != "connection refused" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Pool.Healthy {
		t.Error("expected pool to be reported unhealthy when ping fails")
	}
}

func TestHealthHandler_NoStats(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := HealthHandler(fakePinger{}, nil)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if _, ok := body["pool"]; ok {
		t.Error("expected no pool key without stats")
	}
}
