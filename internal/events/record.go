package events

import "github.com/jdgallegos/beaconshop-backend/pkg/enums"

// Record is the canonical in-memory event. The EventID is assigned exactly
// once and reused verbatim by every channel send for the same logical event;
// that shared id is what makes cross-channel dedup detection possible.
type Record struct {
	Name      enums.EventName
	EventID   string
	Currency  string
	Value     float64
	SourceURL string

	// ProfitMargin and PLTV attach only to Purchase events and only when
	// their independent probability rolls succeed.
	ProfitMargin *float64
	PLTV         *float64
}

// HasEnrichment reports whether either optional Purchase field is present.
func (r Record) HasEnrichment() bool {
	return r.ProfitMargin != nil || r.PLTV != nil
}
