package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

// EventLogEntry is the append-only record of a single channel-send attempt.
// Rows are never mutated or deleted by the application.
type EventLogEntry struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TS        time.Time            `gorm:"column:ts;index;autoCreateTime"`
	Channel   enums.Channel        `gorm:"column:channel;size:16;not null"`
	EventName enums.EventName      `gorm:"column:event_name;size:64;not null"`
	EventID   string               `gorm:"column:event_id;size:128;index;not null"`
	Status    enums.DeliveryStatus `gorm:"column:status;size:32;not null"`
	LatencyMS int64                `gorm:"column:latency_ms;not null;default:0"`
	Payload   string               `gorm:"column:payload;type:text"`
	Error     string               `gorm:"column:error;type:text"`
}

// TableName keeps the table name aligned with the original storefront schema.
func (EventLogEntry) TableName() string {
	return "event_log"
}
