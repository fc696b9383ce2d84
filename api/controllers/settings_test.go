package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/jdgallegos/beaconshop-backend/internal/settings"
)

type stubSettingsService struct {
	values map[string]string
}

func newStubSettingsService() *stubSettingsService {
	return &stubSettingsService{values: map[string]string{}}
}

func (s *stubSettingsService) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *stubSettingsService) Apply(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *stubSettingsService) Chaos(ctx context.Context) settings.ChaosFlags {
	parse := func(key string) bool {
		b, _ := strconv.ParseBool(s.values[key])
		return b
	}
	return settings.ChaosFlags{
		Drop:         parse(settings.KeyChaosDrop),
		Omit:         parse(settings.KeyChaosOmit),
		OmitUserData: parse(settings.KeyChaosOmitUserData),
		Malformed:    parse(settings.KeyChaosMalformed),
	}
}

func (s *stubSettingsService) Toggles(ctx context.Context) settings.ChannelToggles {
	return settings.ChannelToggles{Pixel: true, CAPI: true}
}

func TestApplySettings(t *testing.T) {
	logg := testLogger()

	t.Run("empty body rejected", func(t *testing.T) {
		svc := newStubSettingsService()
		req := httptest.NewRequest(http.MethodPost, "/admin/api/settings", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		ApplySettings(svc, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("stores pairs verbatim and echoes the full map", func(t *testing.T) {
		svc := newStubSettingsService()
		svc.values["qps_pixel"] = "5"
		req := httptest.NewRequest(http.MethodPost, "/admin/api/settings",
			strings.NewReader(`{"pct_profit_margin":"250","interval_seconds":"0.5"}`))
		rec := httptest.NewRecorder()
		ApplySettings(svc, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if svc.values["pct_profit_margin"] != "250" {
			t.Fatalf("stored value = %q", svc.values["pct_profit_margin"])
		}

		var envelope struct {
			Data map[string]string `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data["qps_pixel"] != "5" || envelope.Data["interval_seconds"] != "0.5" {
			t.Fatalf("response = %v", envelope.Data)
		}
	})
}

func TestSetChaos(t *testing.T) {
	logg := testLogger()

	t.Run("no flags rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/api/chaos", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		SetChaos(newStubSettingsService(), logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("flips only the submitted flags", func(t *testing.T) {
		svc := newStubSettingsService()
		svc.values[settings.KeyChaosOmit] = "true"

		req := httptest.NewRequest(http.MethodPost, "/admin/api/chaos", strings.NewReader(`{"drop":true,"malformed":false}`))
		rec := httptest.NewRecorder()
		SetChaos(svc, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		var envelope struct {
			Data settings.ChaosFlags `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		want := settings.ChaosFlags{Drop: true, Omit: true}
		if envelope.Data != want {
			t.Fatalf("flags = %+v, want %+v", envelope.Data, want)
		}
		if svc.values[settings.KeyChaosMalformed] != "false" {
			t.Fatalf("malformed stored as %q", svc.values[settings.KeyChaosMalformed])
		}
	})
}

func TestGetChaosDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/api/chaos", nil)
	rec := httptest.NewRecorder()
	GetChaos(newStubSettingsService(), testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data settings.ChaosFlags `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data != (settings.ChaosFlags{}) {
		t.Fatalf("flags = %+v, want all off", envelope.Data)
	}
}
