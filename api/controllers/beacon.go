package controllers

import (
	"net/http"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/api/validators"
	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type beaconRequest struct {
	EventName string   `json:"event_name" validate:"required"`
	EventID   string   `json:"event_id" validate:"omitempty,max=128"`
	Currency  string   `json:"currency" validate:"omitempty,len=3"`
	Value     *float64 `json:"value" validate:"omitempty,gte=0"`
	SourceURL string   `json:"source_url" validate:"omitempty,max=500"`
}

// Beacon is the public storefront endpoint. Unlike automation traffic, these
// sends carry real browser context: user agent, client IP, fbp cookie and
// fbclid all come off the incoming request.
func Beacon(builder eventBuilder, sender eventSender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil || sender == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch unavailable"))
			return
		}

		var payload beaconRequest
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
		if payload.SourceURL != "" {
			rec.SourceURL = payload.SourceURL
		}

		ctx := logg.WithEventID(r.Context(), rec.EventID)
		pixel, capiOut := sender.Send(ctx, rec, dispatch.RequestContextFrom(r))
		responses.WriteSuccessStatus(w, http.StatusAccepted, sendResponse{EventID: rec.EventID, Pixel: pixel, CAPI: capiOut})
	}
}
