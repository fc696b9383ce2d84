package models

// CounterTotals is the singleton aggregate row backing the dashboard. All
// columns are monotonically non-decreasing; Dedup is a fast-path cache of the
// recomputable cross-channel intersection (see eventlog.Repository).
type CounterTotals struct {
	ID           int64 `gorm:"column:id;primaryKey"`
	Pixel        int64 `gorm:"column:pixel;not null;default:0"`
	CAPI         int64 `gorm:"column:capi;not null;default:0"`
	Dedup        int64 `gorm:"column:dedup;not null;default:0"`
	MarginEvents int64 `gorm:"column:margin_events;not null;default:0"`
	PLTVEvents   int64 `gorm:"column:pltv_events;not null;default:0"`
}

// CounterTotalsID is the fixed primary key of the singleton row.
const CounterTotalsID int64 = 1

// TableName implements the gorm naming override.
func (CounterTotals) TableName() string {
	return "counter_totals"
}
