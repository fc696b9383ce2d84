package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

// pixelLatency approximates the client-side beacon round trip so logged
// latencies are realistic non-zero values.
const pixelLatency = 3 * time.Millisecond

// SendPixel simulates the client-side beacon. It appends an event log row,
// performs the cross-channel dedup lookup against capi, and bumps the pixel
// counter, all in one transaction. Failures become an error-status row; the
// method never returns a Go error.
func (s *Service) SendPixel(ctx context.Context, rec events.Record, rc RequestContext) Outcome {
	toggles := s.settings.Toggles(ctx)
	chaos := s.settings.Chaos(ctx)

	if !toggles.Pixel {
		return s.logDropped(ctx, rec, enums.ChannelPixel, "channel_disabled")
	}
	if chaos.Drop {
		return s.logDropped(ctx, rec, enums.ChannelPixel, "chaos_drop")
	}
	if !s.pixelBucket.TryAcquire() {
		return s.logDropped(ctx, rec, enums.ChannelPixel, "rate_limited")
	}

	start := s.now()
	s.sleep(pixelLatency)

	payload, err := json.Marshal(pixelPayload(rec, chaos.Omit, chaos.Malformed))
	if err != nil {
		out := failed(s.sinceMS(start), err.Error())
		s.logFailure(ctx, rec, enums.ChannelPixel, enums.StatusError, out.LatencyMS, "", out.Detail)
		s.observe(enums.ChannelPixel, out)
		return out
	}

	latencyMS := s.sinceMS(start)
	entry := &models.EventLogEntry{
		Channel:   enums.ChannelPixel,
		EventName: rec.Name,
		EventID:   rec.EventID,
		Status:    enums.StatusOK,
		LatencyMS: latencyMS,
		Payload:   string(payload),
	}
	dedup, err := s.eventLog.Append(ctx, entry, &eventlog.AppendStats{
		CountChannel: true,
		CheckDedup:   true,
	})
	if err != nil {
		out := failed(latencyMS, err.Error())
		s.logg.Error(ctx, "pixel send accounting failed", err)
		s.observe(enums.ChannelPixel, out)
		return out
	}
	if dedup {
		s.metrics.IncDedup()
	}

	out := Outcome{Status: enums.StatusOK, LatencyMS: latencyMS}
	s.observe(enums.ChannelPixel, out)
	return out
}

// pixelPayload mirrors the beacon query string the storefront JS would fire:
// event identity plus a minimal custom-data block. Enrichment fields ride
// only on the capi payload.
func pixelPayload(rec events.Record, omitCurrency, malformed bool) map[string]any {
	cd := map[string]any{}
	if rec.Value > 0 || rec.Name == enums.EventPurchase {
		cd["value"] = rec.Value
	}
	if malformed {
		cd["value"] = malformedValue
	}
	if !omitCurrency {
		cd["currency"] = rec.Currency
	}
	return map[string]any{
		"event_name":  rec.Name.String(),
		"event_id":    rec.EventID,
		"custom_data": cd,
	}
}

func (s *Service) sinceMS(start time.Time) int64 {
	ms := s.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
