// Package events constructs the canonical event records flowing through the
// dispatch pipeline.
package events

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

const defaultCurrency = "USD"

type enrichmentSource interface {
	Enrichment(ctx context.Context) settings.EnrichmentConfig
}

// Builder assembles Records from live configuration. Randomness is injected
// so tests can drive deterministic rolls.
type Builder struct {
	settings  enrichmentSource
	sourceURL string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBuilder constructs a Builder; rng may be nil, in which case a
// time-seeded source is used.
func NewBuilder(src enrichmentSource, sourceURL string, rng *rand.Rand) (*Builder, error) {
	if src == nil {
		return nil, fmt.Errorf("settings source required")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Builder{settings: src, sourceURL: sourceURL, rng: rng}, nil
}

// Build constructs a Record for the named event. Non-Purchase events carry a
// zero value and no enrichment; Purchase events draw a price from the
// configured band and roll the two enrichment attachments independently.
func (b *Builder) Build(ctx context.Context, name enums.EventName) Record {
	rec := Record{
		Name:      name,
		EventID:   uuid.NewString(),
		Currency:  defaultCurrency,
		SourceURL: b.sourceURL,
	}
	if name != enums.EventPurchase {
		return rec
	}

	cfg := b.settings.Enrichment(ctx)
	rec.Value = round2(b.uniform(cfg.ValueMin, cfg.ValueMax))

	if b.roll(cfg.MarginPct) {
		margin := profitMargin(rec.Value, b.uniform(cfg.MarginMin, cfg.MarginMax))
		rec.ProfitMargin = &margin
	}
	if b.roll(cfg.PLTVPct) {
		pltv := round2(b.uniform(cfg.PLTVMin, cfg.PLTVMax))
		rec.PLTV = &pltv
	}
	return rec
}

// BuildManual constructs a Record from an explicit admin trigger, reusing
// the supplied id when present and still applying Purchase enrichment rolls
// when no explicit value override disables them.
func (b *Builder) BuildManual(ctx context.Context, name enums.EventName, eventID, currency string, value float64) Record {
	rec := Record{
		Name:      name,
		EventID:   eventID,
		Currency:  currency,
		Value:     value,
		SourceURL: b.sourceURL,
	}
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	if rec.Currency == "" {
		rec.Currency = defaultCurrency
	}
	if rec.Value < 0 {
		rec.Value = 0
	}
	if name != enums.EventPurchase {
		return rec
	}

	cfg := b.settings.Enrichment(ctx)
	if rec.Value == 0 {
		rec.Value = round2(b.uniform(cfg.ValueMin, cfg.ValueMax))
	}
	if b.roll(cfg.MarginPct) {
		margin := profitMargin(rec.Value, b.uniform(cfg.MarginMin, cfg.MarginMax))
		rec.ProfitMargin = &margin
	}
	if b.roll(cfg.PLTVPct) {
		pltv := round2(b.uniform(cfg.PLTVMin, cfg.PLTVMax))
		rec.PLTV = &pltv
	}
	return rec
}

// profitMargin computes value minus the drawn cost percentage, clamped to
// [0, value].
func profitMargin(value, costPct float64) float64 {
	margin := value - value*costPct/100.0
	if margin < 0 {
		return 0
	}
	if margin > value {
		return value
	}
	return round2(margin)
}

// roll succeeds pct times out of 100.
func (b *Builder) roll(pct int) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Intn(100) < pct
}

func (b *Builder) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo + b.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
