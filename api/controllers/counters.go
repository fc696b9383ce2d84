package controllers

import (
	"context"
	"net/http"

	"github.com/jdgallegos/beaconshop-backend/api/responses"
	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	pkgerrors "github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type counterReader interface {
	Counters(ctx context.Context) (*models.CounterTotals, error)
	Recompute(ctx context.Context) (*eventlog.Aggregates, error)
}

type countersResponse struct {
	Pixel        int64                `json:"pixel"`
	CAPI         int64                `json:"capi"`
	Dedup        int64                `json:"dedup"`
	MarginEvents int64                `json:"margin_events"`
	PLTVEvents   int64                `json:"pltv_events"`
	Running      bool                 `json:"running"`
	Workers      int                  `json:"workers"`
	Recomputed   *eventlog.Aggregates `json:"recomputed,omitempty"`
}

// GetCounters returns the cached totals row alongside the automation state.
// With ?recompute=1 it also runs the full-scan aggregation, whose dedup
// figure is authoritative when the two disagree.
func GetCounters(repo counterReader, sched automationScheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event log unavailable"))
			return
		}

		totals, err := repo.Counters(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := countersResponse{
			Pixel:        totals.Pixel,
			CAPI:         totals.CAPI,
			Dedup:        totals.Dedup,
			MarginEvents: totals.MarginEvents,
			PLTVEvents:   totals.PLTVEvents,
		}
		if sched != nil {
			status := sched.Status(r.Context())
			resp.Running = status.Running
			resp.Workers = status.Workers
		}

		if r.URL.Query().Get("recompute") == "1" {
			agg, err := repo.Recompute(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.Recomputed = agg
		}

		responses.WriteSuccess(w, resp)
	}
}
