package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type eventLister interface {
	List(ctx context.Context, limit int, channel enums.Channel) ([]models.EventLogEntry, error)
}

// ListEvents returns the newest log rows, default 100, capped by the
// repository. An optional channel query parameter narrows the rows to a
// single delivery path.
func ListEvents(repo eventLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event log unavailable"))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer"))
				return
			}
			limit = parsed
		}

		var channel enums.Channel
		if raw := r.URL.Query().Get("channel"); raw != "" {
			parsed, err := enums.ParseChannel(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "channel must be one of pixel, capi, app"))
				return
			}
			channel = parsed
		}

		entries, err := repo.List(r.Context(), limit, channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
