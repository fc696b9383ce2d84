package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/capi"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

// SendCAPI performs the server-side conversion API send. Token acquisition
// deliberately blocks the calling worker (busy poll); the network call
// itself is a single bounded-timeout attempt with no retry. The method never
// returns a Go error.
func (s *Service) SendCAPI(ctx context.Context, rec events.Record, rc RequestContext) Outcome {
	toggles := s.settings.Toggles(ctx)
	chaos := s.settings.Chaos(ctx)

	if !toggles.CAPI {
		return s.logDropped(ctx, rec, enums.ChannelCAPI, "channel_disabled")
	}
	if chaos.Drop {
		return s.logDropped(ctx, rec, enums.ChannelCAPI, "chaos_drop")
	}

	if err := s.capiBucket.Wait(ctx); err != nil {
		return s.logDropped(ctx, rec, enums.ChannelCAPI, "canceled")
	}

	start := s.now()
	payload := s.buildPayload(ctx, rec, rc, chaos)
	body, err := json.Marshal(payload)
	if err != nil {
		out := failed(s.sinceMS(start), err.Error())
		s.logFailure(ctx, rec, enums.ChannelCAPI, enums.StatusError, out.LatencyMS, "", out.Detail)
		s.observe(enums.ChannelCAPI, out)
		return out
	}

	if err := payload.Validate(); err != nil {
		// Surface structural problems early, then keep going: chaos
		// testing wants the malformed payload to reach the wire.
		s.logFailure(ctx, rec, enums.ChannelApp, enums.StatusInvalid, 0, string(body), err.Error())
	}

	creds := s.settings.Credentials(ctx)
	if s.capiClient == nil {
		out := Outcome{Status: enums.StatusSkipped, Detail: "capi client not configured"}
		s.logFailure(ctx, rec, enums.ChannelCAPI, enums.StatusSkipped, 0, string(body), out.Detail)
		s.observe(enums.ChannelCAPI, out)
		return out
	}
	if !creds.Configured() {
		return s.recordAccepted(ctx, rec, enums.StatusDryRun, s.sinceMS(start), string(body))
	}

	status, respBody, err := s.capiClient.PostEvents(ctx, creds, payload)
	latencyMS := s.sinceMS(start)
	if err != nil {
		out := failed(latencyMS, truncate(err.Error(), 1000))
		s.logFailure(ctx, rec, enums.ChannelCAPI, enums.StatusError, latencyMS, string(body), out.Detail)
		s.observe(enums.ChannelCAPI, out)
		return out
	}
	if status < 200 || status > 299 {
		httpStatus := enums.HTTPStatus(status)
		out := Outcome{Status: httpStatus, LatencyMS: latencyMS, Detail: truncate(respBody, 2000)}
		s.logFailure(ctx, rec, enums.ChannelCAPI, httpStatus, latencyMS, string(body), out.Detail)
		s.observe(enums.ChannelCAPI, out)
		return out
	}

	return s.recordAccepted(ctx, rec, enums.StatusOK, latencyMS, string(body))
}

// recordAccepted handles the shared ok/dry_run bookkeeping: log row, capi
// counter, enrichment counters, and the reverse dedup lookup against pixel.
func (s *Service) recordAccepted(ctx context.Context, rec events.Record, status enums.DeliveryStatus, latencyMS int64, payload string) Outcome {
	entry := &models.EventLogEntry{
		Channel:   enums.ChannelCAPI,
		EventName: rec.Name,
		EventID:   rec.EventID,
		Status:    status,
		LatencyMS: latencyMS,
		Payload:   payload,
	}
	dedup, err := s.eventLog.Append(ctx, entry, &eventlog.AppendStats{
		CountChannel: true,
		CheckDedup:   true,
		HasMargin:    rec.ProfitMargin != nil,
		HasPLTV:      rec.PLTV != nil,
	})
	if err != nil {
		out := failed(latencyMS, err.Error())
		s.logg.Error(ctx, "capi send accounting failed", err)
		s.observe(enums.ChannelCAPI, out)
		return out
	}
	if dedup {
		s.metrics.IncDedup()
	}

	out := Outcome{Status: status, LatencyMS: latencyMS}
	s.observe(enums.ChannelCAPI, out)
	return out
}

func (s *Service) buildPayload(ctx context.Context, rec events.Record, rc RequestContext, chaos settings.ChaosFlags) capi.Payload {
	now := s.now()

	customData := map[string]any{"value": rec.Value}
	if chaos.Malformed {
		customData["value"] = malformedValue
	}
	if !chaos.Omit {
		customData["currency"] = rec.Currency
	}
	if rec.ProfitMargin != nil {
		customData["profit_margin"] = *rec.ProfitMargin
	}
	if rec.PLTV != nil {
		customData["pltv"] = *rec.PLTV
	}

	var userData capi.UserData
	if !chaos.OmitUserData {
		userData = s.buildUserData(ctx, rc, now)
	}

	creds := s.settings.Credentials(ctx)
	return capi.Payload{
		Data: []capi.Event{{
			EventName:      rec.Name.String(),
			EventTime:      now.Unix(),
			EventID:        rec.EventID,
			ActionSource:   "website",
			EventSourceURL: rec.SourceURL,
			UserData:       userData,
			CustomData:     customData,
		}},
		TestEventCode: creds.TestEventCode,
	}
}

func (s *Service) buildUserData(ctx context.Context, rc RequestContext, now time.Time) capi.UserData {
	ud := capi.UserData{
		ClientUserAgent: rc.UserAgent,
		ClientIPAddress: rc.ClientIP(),
		FBP:             rc.FBPCookie,
		FBC:             rc.FBC(now),
		Email:           rc.Email,
		Phone:           rc.Phone,
	}
	if ud.ClientUserAgent == "" {
		ud.ClientUserAgent = "beaconshop-automation/1.0"
	}
	if ud.Email == "" || ud.Phone == "" {
		email, phone := s.settings.Defaults(ctx)
		if ud.Email == "" {
			ud.Email = email
		}
		if ud.Phone == "" {
			ud.Phone = phone
		}
	}
	return ud
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
