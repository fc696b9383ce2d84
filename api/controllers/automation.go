package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/api/validators"
	"github.com/jdgallegos/beaconshop-backend/internal/automation"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type automationScheduler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	SetMaxWorkers(n int)
	Status(ctx context.Context) automation.Status
}

type settingsWriter interface {
	Apply(ctx context.Context, values map[string]string) error
}

type automationStartRequest struct {
	Intervals   map[string]float64 `json:"intervals" validate:"omitempty,dive,gt=0"`
	Concurrency *int               `json:"concurrency" validate:"omitempty,gte=1,lte=64"`
}

// AutomationStart brings the worker pool up. The optional body overrides
// per-event intervals (stored, so workers pick them up on their next tick)
// and the worker cap. Starting while running succeeds and reports the
// unchanged state.
func AutomationStart(sched automationScheduler, settingsSvc settingsWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation unavailable"))
			return
		}

		var payload automationStartRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if len(payload.Intervals) > 0 {
			values := make(map[string]string, len(payload.Intervals))
			for rawName, seconds := range payload.Intervals {
				name, err := enums.ParseEventName(rawName)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event name in intervals"))
					return
				}
				values[settings.IntervalKey(name.String())] = strconv.FormatFloat(seconds, 'f', -1, 64)
			}
			if settingsSvc == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
				return
			}
			if err := settingsSvc.Apply(r.Context(), values); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if payload.Concurrency != nil {
			sched.SetMaxWorkers(*payload.Concurrency)
		}

		if err := sched.Start(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sched.Status(r.Context()))
	}
}

// AutomationStop tears the worker pool down, waiting out the bounded join.
func AutomationStop(sched automationScheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation unavailable"))
			return
		}
		if err := sched.Stop(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sched.Status(r.Context()))
	}
}

func AutomationStatus(sched automationScheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sched == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation unavailable"))
			return
		}
		responses.WriteSuccess(w, sched.Status(r.Context()))
	}
}
