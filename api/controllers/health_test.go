package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jdgallegos/beaconshop-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

func healthConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	HealthLive(healthConfig()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-BeaconShop-Env"); got != "test" {
		t.Fatalf("env header = %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	logg := testLogger()

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
		t.Helper()
		var envelope struct {
			Data map[string]string `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return envelope.Data
	}

	t.Run("all stores healthy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		HealthReady(healthConfig(), logg, &stubPinger{}, &stubPinger{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		checks := decode(t, rec)
		if checks["db"] != "ok" || checks["redis"] != "ok" || checks["status"] != "ready" {
			t.Fatalf("checks = %v", checks)
		}
	})

	t.Run("redis optional", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		HealthReady(healthConfig(), logg, &stubPinger{}, nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if checks := decode(t, rec); checks["redis"] != "skipped" {
			t.Fatalf("checks = %v", checks)
		}
	})

	t.Run("db failure fails readiness", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		HealthReady(healthConfig(), logg, &stubPinger{err: errors.New("dial refused")}, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("redis failure fails readiness", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		HealthReady(healthConfig(), logg, &stubPinger{}, &stubPinger{err: errors.New("dial refused")}).ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}
