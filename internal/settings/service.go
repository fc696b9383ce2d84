// Package settings exposes the live runtime configuration consumed by the
// event builder and channel senders. Values come from the KV store with env
// defaults underneath; malformed values are clamped or defaulted, never
// rejected, to keep the control plane permissive.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/jdgallegos/beaconshop-backend/pkg/capi"
	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

// minTickInterval is the floor applied to automation intervals so a
// misconfigured slider cannot produce a runaway loop.
const minTickInterval = 250 * time.Millisecond

// ChannelToggles reports which delivery channels are currently enabled.
type ChannelToggles struct {
	Pixel bool `json:"pixel"`
	CAPI  bool `json:"capi"`
}

// ChaosFlags are fault-injection toggles read live at send time. Drop short
// circuits the senders, Omit strips the currency from custom_data,
// OmitUserData empties the user context, Malformed replaces the value with a
// non-numeric sentinel. All four are orthogonal.
type ChaosFlags struct {
	Drop         bool `json:"drop"`
	Omit         bool `json:"omit"`
	OmitUserData bool `json:"omit_user_data"`
	Malformed    bool `json:"malformed"`
}

// EnrichmentConfig drives the Purchase value band and the probabilistic
// profit-margin / PLTV attachments.
type EnrichmentConfig struct {
	ValueMin  float64
	ValueMax  float64
	MarginPct int
	MarginMin float64
	MarginMax float64
	PLTVPct   int
	PLTVMin   float64
	PLTVMax   float64
}

// Service reads and writes the runtime configuration.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService builds a settings service over the KV repository.
func NewService(repo *Repository, cfg *config.Config) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	return &Service{repo: repo, cfg: cfg}, nil
}

// Apply stores every provided key verbatim. Unknown keys are kept; readers
// only consult the keys they understand.
func (s *Service) Apply(ctx context.Context, values map[string]string) error {
	var errs error
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := s.repo.Set(ctx, key, value); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("storing setting %q: %w", key, err))
		}
	}
	return errs
}

// All returns the raw stored configuration.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	return s.repo.All(ctx)
}

// Toggles reads the channel enable flags; both default to enabled.
func (s *Service) Toggles(ctx context.Context) ChannelToggles {
	return ChannelToggles{
		Pixel: s.boolOr(ctx, KeyAutomationPixel, true),
		CAPI:  s.boolOr(ctx, KeyAutomationCAPI, true),
	}
}

// Chaos reads the fault-injection flags; all default to off.
func (s *Service) Chaos(ctx context.Context) ChaosFlags {
	return ChaosFlags{
		Drop:         s.boolOr(ctx, KeyChaosDrop, false),
		Omit:         s.boolOr(ctx, KeyChaosOmit, false),
		OmitUserData: s.boolOr(ctx, KeyChaosOmitUserData, false),
		Malformed:    s.boolOr(ctx, KeyChaosMalformed, false),
	}
}

// Enrichment reads the Purchase enrichment knobs with clamped defaults.
func (s *Service) Enrichment(ctx context.Context) EnrichmentConfig {
	valueMin, valueMax := s.rangeOr(ctx, KeyValueMin, KeyValueMax, 10, 250)
	marginMin, marginMax := s.rangeOr(ctx, KeyMarginMin, KeyMarginMax, 10, 50)
	pltvMin, pltvMax := s.rangeOr(ctx, KeyPLTVMin, KeyPLTVMax, 50, 500)
	return EnrichmentConfig{
		ValueMin:  valueMin,
		ValueMax:  valueMax,
		MarginPct: s.percentOr(ctx, KeyPctProfitMargin, 100),
		MarginMin: marginMin,
		MarginMax: marginMax,
		PLTVPct:   s.percentOr(ctx, KeyPctPLTV, 100),
		PLTVMin:   pltvMin,
		PLTVMax:   pltvMax,
	}
}

// Intervals returns the per-event tick cadence for the requested names,
// floored at 250ms.
func (s *Service) Intervals(ctx context.Context, names []enums.EventName) map[enums.EventName]time.Duration {
	out := make(map[enums.EventName]time.Duration, len(names))
	fallback := s.cfg.Automation.DefaultInterval
	if fallback < minTickInterval {
		fallback = minTickInterval
	}
	for _, name := range names {
		out[name] = s.intervalOr(ctx, IntervalKey(name.String()), fallback)
	}
	return out
}

// IntervalFor returns the cadence for a single event name.
func (s *Service) IntervalFor(ctx context.Context, name enums.EventName) time.Duration {
	fallback := s.cfg.Automation.DefaultInterval
	if fallback < minTickInterval {
		fallback = minTickInterval
	}
	return s.intervalOr(ctx, IntervalKey(name.String()), fallback)
}

// Credentials resolves the conversion API credentials: env first, KV store
// as fallback. The test event code rides along only when its toggle is on.
func (s *Service) Credentials(ctx context.Context) capi.Credentials {
	creds := capi.Credentials{
		PixelID:     s.cfg.CAPI.PixelID,
		AccessToken: s.cfg.CAPI.AccessToken,
	}
	if creds.PixelID == "" {
		creds.PixelID, _ = s.stringOr(ctx, KeyPixelID, "")
	}
	if creds.AccessToken == "" {
		creds.AccessToken, _ = s.stringOr(ctx, KeyAccessToken, "")
	}
	if s.boolOr(ctx, KeyUseTestEventCode, s.cfg.CAPI.TestEventCode != "") {
		creds.TestEventCode = s.cfg.CAPI.TestEventCode
		if creds.TestEventCode == "" {
			creds.TestEventCode, _ = s.stringOr(ctx, KeyTestEventCode, "")
		}
	}
	// Graph version is the one credential where the KV store wins: the env
	// default is always populated, so a stored value is an explicit override.
	creds.GraphVersion, _ = s.stringOr(ctx, KeyGraphVer, "")
	return creds
}

// Defaults returns the fallback contact fields attached to user_data when
// the triggering request carried none.
func (s *Service) Defaults(ctx context.Context) (email, phone string) {
	email, _ = s.stringOr(ctx, KeyDefaultEmail, "")
	phone, _ = s.stringOr(ctx, KeyDefaultPhone, "")
	return email, phone
}

// QPS returns the per-channel rate limits; zero or negative means unlimited.
func (s *Service) QPS(ctx context.Context) (pixel, capiQPS float64) {
	pixel = s.floatOr(ctx, KeyQPSPixel, s.cfg.RateLimit.PixelQPS)
	capiQPS = s.floatOr(ctx, KeyQPSCAPI, s.cfg.RateLimit.CAPIQPS)
	return pixel, capiQPS
}

func (s *Service) stringOr(ctx context.Context, key, fallback string) (string, bool) {
	value, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return fallback, false
	}
	return value, true
}

func (s *Service) boolOr(ctx context.Context, key string, fallback bool) bool {
	raw, ok := s.stringOr(ctx, key, "")
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	}
	return fallback
}

func (s *Service) percentOr(ctx context.Context, key string, fallback int) int {
	raw, ok := s.stringOr(ctx, key, "")
	if !ok {
		return clampPercent(fallback)
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return clampPercent(fallback)
	}
	return clampPercent(parsed)
}

func (s *Service) floatOr(ctx context.Context, key string, fallback float64) float64 {
	raw, ok := s.stringOr(ctx, key, "")
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s *Service) rangeOr(ctx context.Context, minKey, maxKey string, defMin, defMax float64) (float64, float64) {
	lo := s.floatOr(ctx, minKey, defMin)
	hi := s.floatOr(ctx, maxKey, defMax)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

func (s *Service) intervalOr(ctx context.Context, key string, fallback time.Duration) time.Duration {
	seconds := s.floatOr(ctx, key, fallback.Seconds())
	interval := time.Duration(seconds * float64(time.Second))
	if interval < minTickInterval {
		return minTickInterval
	}
	return interval
}

func clampPercent(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
