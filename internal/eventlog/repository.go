// Package eventlog owns the append-only send-attempt log and the aggregate
// counters row. Log rows are inserted exactly once per channel-send attempt
// and never mutated; the counter mutation rides in the same transaction as
// the triggering append so the common case cannot lose updates.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdgallegos/beaconshop-backend/pkg/db"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
)

// AppendStats describes the counter mutations that accompany one log append.
// A nil *AppendStats appends the row with no counter side effects.
type AppendStats struct {
	// CountChannel increments the per-channel accepted counter.
	CountChannel bool
	// CheckDedup looks for a successful entry with the same event id on the
	// opposite channel and bumps the dedup counter on a match.
	CheckDedup bool
	HasMargin  bool
	HasPLTV    bool
}

// Aggregates are the recomputed dashboard numbers. DedupDistinct is the
// authoritative dedup figure; the incrementally maintained counter row is a
// fast-path cache of the same quantity and may briefly lag it.
type Aggregates struct {
	PixelOK       int64 `json:"pixel_ok"`
	CAPIOK        int64 `json:"capi_ok"`
	MarginEvents  int64 `json:"margin_events"`
	PLTVEvents    int64 `json:"pltv_events"`
	DedupDistinct int64 `json:"dedup_distinct"`
}

// Repository wraps event-log persistence.
type Repository struct {
	client *db.Client
	now    func() time.Time
}

// NewRepository builds a repository over the shared DB client.
func NewRepository(client *db.Client) (*Repository, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &Repository{client: client, now: time.Now}, nil
}

// Append inserts the log row and applies the requested counter mutations in
// one transaction. It reports whether a cross-channel duplicate was detected
// for this event id. Callers decide whether a returned error is fatal; the
// row is not retried here.
func (r *Repository) Append(ctx context.Context, entry *models.EventLogEntry, stats *AppendStats) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("log entry required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.TS.IsZero() {
		entry.TS = r.now().UTC()
	}

	var dedup bool
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("inserting log entry: %w", err)
		}
		if stats == nil {
			return nil
		}

		counters, err := countersForUpdate(tx)
		if err != nil {
			return err
		}

		if stats.CheckDedup {
			if other, ok := entry.Channel.Other(); ok {
				exists, err := existsSuccessful(tx, entry.EventID, other)
				if err != nil {
					return err
				}
				if exists {
					counters.Dedup++
					dedup = true
				}
			}
		}

		if stats.CountChannel {
			switch entry.Channel {
			case enums.ChannelPixel:
				counters.Pixel++
			case enums.ChannelCAPI:
				counters.CAPI++
			}
		}
		if stats.HasMargin {
			counters.MarginEvents++
		}
		if stats.HasPLTV {
			counters.PLTVEvents++
		}

		if err := tx.Save(counters).Error; err != nil {
			return fmt.Errorf("updating counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return dedup, nil
}

// Counters returns the singleton totals row, creating it lazily.
func (r *Repository) Counters(ctx context.Context) (*models.CounterTotals, error) {
	var counters *models.CounterTotals
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		counters, err = countersForUpdate(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// List returns the most recent entries, newest first. An empty channel
// returns all rows.
func (r *Repository) List(ctx context.Context, limit int, channel enums.Channel) ([]models.EventLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := r.client.DB().WithContext(ctx).
		Order("ts DESC").
		Limit(limit)
	if channel != "" {
		query = query.Where("channel = ?", channel.String())
	}
	var rows []models.EventLogEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Recompute derives the dashboard aggregates from the log itself. The
// distinct-intersection dedup count here is ground truth; the incremental
// counter is treated as a cache of it.
func (r *Repository) Recompute(ctx context.Context) (*Aggregates, error) {
	conn := r.client.DB().WithContext(ctx)
	agg := &Aggregates{}

	var err error
	if agg.PixelOK, err = okCount(conn, enums.ChannelPixel); err != nil {
		return nil, err
	}
	if agg.CAPIOK, err = okCount(conn, enums.ChannelCAPI); err != nil {
		return nil, err
	}

	if err := conn.Model(&models.EventLogEntry{}).
		Where("payload LIKE ?", "%profit_margin%").
		Count(&agg.MarginEvents).Error; err != nil {
		return nil, fmt.Errorf("counting margin events: %w", err)
	}
	if err := conn.Model(&models.EventLogEntry{}).
		Where("payload LIKE ?", "%pltv%").
		Count(&agg.PLTVEvents).Error; err != nil {
		return nil, fmt.Errorf("counting pltv events: %w", err)
	}

	// Distinct event ids with at least one successful entry on both
	// delivery channels.
	const intersection = `
SELECT COUNT(*) FROM (
  SELECT event_id FROM event_log
  WHERE status IN ? AND channel IN ?
  GROUP BY event_id
  HAVING COUNT(DISTINCT channel) = 2
) both_channels`
	statuses := []string{enums.StatusOK.String(), enums.StatusDryRun.String()}
	channels := []string{enums.ChannelPixel.String(), enums.ChannelCAPI.String()}
	if err := conn.Raw(intersection, statuses, channels).Scan(&agg.DedupDistinct).Error; err != nil {
		return nil, fmt.Errorf("recomputing dedup intersection: %w", err)
	}
	return agg, nil
}

func countersForUpdate(tx *gorm.DB) (*models.CounterTotals, error) {
	var counters models.CounterTotals
	err := tx.First(&counters, "id = ?", models.CounterTotalsID).Error
	if err == nil {
		return &counters, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loading counters: %w", err)
	}
	counters = models.CounterTotals{ID: models.CounterTotalsID}
	if err := tx.Create(&counters).Error; err != nil {
		return nil, fmt.Errorf("creating counters row: %w", err)
	}
	return &counters, nil
}

func existsSuccessful(tx *gorm.DB, eventID string, channel enums.Channel) (bool, error) {
	var count int64
	err := tx.Model(&models.EventLogEntry{}).
		Where("event_id = ? AND channel = ? AND status IN ?",
			eventID, channel.String(),
			[]string{enums.StatusOK.String(), enums.StatusDryRun.String()}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return count > 0, nil
}

func okCount(conn *gorm.DB, channel enums.Channel) (int64, error) {
	var count int64
	err := conn.Model(&models.EventLogEntry{}).
		Where("channel = ? AND status IN ?", channel.String(),
			[]string{enums.StatusOK.String(), enums.StatusDryRun.String()}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting %s successes: %w", channel, err)
	}
	return count, nil
}
