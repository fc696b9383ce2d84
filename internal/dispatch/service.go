// Package dispatch sends event records through the pixel and conversion API
// channels. Senders never return a Go error to their caller: every failure
// is classified into a DeliveryStatus and recorded as a log row.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/internal/ratelimit"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/capi"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
	"github.com/jdgallegos/beaconshop-backend/pkg/metrics"
)

// malformedValue is the non-numeric sentinel injected by the malformed chaos
// flag to exercise downstream error handling.
const malformedValue = "not-a-number"

type settingsSource interface {
	Toggles(ctx context.Context) settings.ChannelToggles
	Chaos(ctx context.Context) settings.ChaosFlags
	Credentials(ctx context.Context) capi.Credentials
	Defaults(ctx context.Context) (string, string)
}

type logAppender interface {
	Append(ctx context.Context, entry *models.EventLogEntry, stats *eventlog.AppendStats) (bool, error)
}

type eventsPoster interface {
	PostEvents(ctx context.Context, creds capi.Credentials, payload capi.Payload) (int, string, error)
}

// ServiceParams configure the dispatch service.
type ServiceParams struct {
	Logger      *logger.Logger
	Settings    settingsSource
	EventLog    logAppender
	CAPIClient  eventsPoster
	Metrics     *metrics.DispatchMetrics
	PixelBucket *ratelimit.Bucket
	CAPIBucket  *ratelimit.Bucket
}

// Service fans event records out to the enabled channels.
type Service struct {
	logg        *logger.Logger
	settings    settingsSource
	eventLog    logAppender
	capiClient  eventsPoster
	metrics     *metrics.DispatchMetrics
	pixelBucket *ratelimit.Bucket
	capiBucket  *ratelimit.Bucket
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewService validates the wiring and builds a dispatch service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings source required")
	}
	if params.EventLog == nil {
		return nil, fmt.Errorf("event log required")
	}
	if params.PixelBucket == nil || params.CAPIBucket == nil {
		return nil, fmt.Errorf("rate limit buckets required")
	}
	return &Service{
		logg:        params.Logger,
		settings:    params.Settings,
		eventLog:    params.EventLog,
		capiClient:  params.CAPIClient,
		metrics:     params.Metrics,
		pixelBucket: params.PixelBucket,
		capiBucket:  params.CAPIBucket,
		now:         time.Now,
		sleep:       time.Sleep,
	}, nil
}

// Send pushes the record through both channels concurrently. The sends share
// one event id but race independently; neither outcome affects the other.
func (s *Service) Send(ctx context.Context, rec events.Record, rc RequestContext) (pixel, capiOut Outcome) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pixel = s.SendPixel(ctx, rec, rc)
	}()
	go func() {
		defer wg.Done()
		capiOut = s.SendCAPI(ctx, rec, rc)
	}()
	wg.Wait()
	return pixel, capiOut
}

func (s *Service) observe(channel enums.Channel, out Outcome) {
	s.metrics.ObserveSend(channel.String(), out.Status.String(),
		time.Duration(out.LatencyMS)*time.Millisecond)
}

// logDropped records a policy short circuit so the drop rate stays visible
// in the event log. Counter totals are untouched.
func (s *Service) logDropped(ctx context.Context, rec events.Record, channel enums.Channel, detail string) Outcome {
	entry := &models.EventLogEntry{
		Channel:   channel,
		EventName: rec.Name,
		EventID:   rec.EventID,
		Status:    enums.StatusDropped,
		Error:     detail,
	}
	if _, err := s.eventLog.Append(ctx, entry, nil); err != nil {
		s.logg.Error(ctx, "failed to record dropped send", err)
	}
	out := dropped(detail)
	s.observe(channel, out)
	return out
}

func (s *Service) logFailure(ctx context.Context, rec events.Record, channel enums.Channel, status enums.DeliveryStatus, latencyMS int64, payload, detail string) {
	entry := &models.EventLogEntry{
		Channel:   channel,
		EventName: rec.Name,
		EventID:   rec.EventID,
		Status:    status,
		LatencyMS: latencyMS,
		Payload:   payload,
		Error:     detail,
	}
	if _, err := s.eventLog.Append(ctx, entry, nil); err != nil {
		s.logg.Error(ctx, "failed to record send failure", err)
	}
}
