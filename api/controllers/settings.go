package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/api/validators"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type settingsService interface {
	All(ctx context.Context) (map[string]string, error)
	Apply(ctx context.Context, values map[string]string) error
	Chaos(ctx context.Context) settings.ChaosFlags
	Toggles(ctx context.Context) settings.ChannelToggles
}

// ListSettings returns every stored key/value pair verbatim.
func ListSettings(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		values, err := svc.All(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, values)
	}
}

// ApplySettings stores the submitted pairs as-is. Interpretation, clamping
// and defaulting happen at read time, so out-of-range writes succeed here.
func ApplySettings(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var payload map[string]string
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(payload) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no settings submitted"))
			return
		}
		if err := svc.Apply(r.Context(), payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		values, err := svc.All(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, values)
	}
}

type chaosRequest struct {
	Drop         *bool `json:"drop,omitempty"`
	Omit         *bool `json:"omit,omitempty"`
	OmitUserData *bool `json:"omit_user_data,omitempty"`
	Malformed    *bool `json:"malformed,omitempty"`
}

// GetChaos reports the live fault-injection flags.
func GetChaos(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Chaos(r.Context()))
	}
}

// SetChaos flips the submitted flags; omitted fields are left alone.
func SetChaos(svc settingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var payload chaosRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		values := map[string]string{}
		if payload.Drop != nil {
			values[settings.KeyChaosDrop] = strconv.FormatBool(*payload.Drop)
		}
		if payload.Omit != nil {
			values[settings.KeyChaosOmit] = strconv.FormatBool(*payload.Omit)
		}
		if payload.OmitUserData != nil {
			values[settings.KeyChaosOmitUserData] = strconv.FormatBool(*payload.OmitUserData)
		}
		if payload.Malformed != nil {
			values[settings.KeyChaosMalformed] = strconv.FormatBool(*payload.Malformed)
		}
		if len(values) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no chaos flags submitted"))
			return
		}

		if err := svc.Apply(r.Context(), values); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.Chaos(r.Context()))
	}
}
