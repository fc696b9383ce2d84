package controllers

import (
	"context"
	"net/http"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/api/validators"
	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type eventBuilder interface {
	Build(ctx context.Context, name enums.EventName) events.Record
	BuildManual(ctx context.Context, name enums.EventName, eventID, currency string, value float64) events.Record
}

type eventSender interface {
	Send(ctx context.Context, rec events.Record, rc dispatch.RequestContext) (dispatch.Outcome, dispatch.Outcome)
}

type manualSendRequest struct {
	EventName string   `json:"event_name" validate:"required"`
	EventID   string   `json:"event_id" validate:"omitempty,max=128"`
	Currency  string   `json:"currency" validate:"omitempty,len=3"`
	Value     *float64 `json:"value" validate:"omitempty,gte=0"`
}

// sendResponse pairs the shared event id with both channel outcomes.
type sendResponse struct {
	EventID string           `json:"event_id"`
	Pixel   dispatch.Outcome `json:"pixel"`
	CAPI    dispatch.Outcome `json:"capi"`
}

// ManualSend fires one event immediately, bypassing the automation cadence
// but not the rate limiters or chaos flags. Without an explicit value the
// record goes through the same probabilistic build as automated traffic.
func ManualSend(builder eventBuilder, sender eventSender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil || sender == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch unavailable"))
			return
		}

		var payload manualSendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		name, err := enums.ParseEventName(payload.EventName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event name"))
			return
		}

		var rec events.Record
		if payload.Value != nil {
			rec = builder.BuildManual(r.Context(), name, payload.EventID, payload.Currency, *payload.Value)
		} else {
			rec = builder.Build(r.Context(), name)
			if payload.EventID != "" {
				rec.EventID = payload.EventID
			}
		}

		ctx := logg.WithEventID(r.Context(), rec.EventID)
		pixel, capiOut := sender.Send(ctx, rec, dispatch.RequestContextFrom(r))
		responses.WriteSuccess(w, sendResponse{EventID: rec.EventID, Pixel: pixel, CAPI: capiOut})
	}
}
