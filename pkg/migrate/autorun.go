package migrate

import (
	"context"
	"fmt"

	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/db"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

// MaybeRunDev creates the schema automatically when the app is running in dev
// mode and the feature flag is enabled. Production schema management is
// handled outside this repo.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running schema auto-migration (dev auto-run)")

	err := client.DB().WithContext(ctx).AutoMigrate(
		&models.EventLogEntry{},
		&models.CounterTotals{},
		&models.Setting{},
		&models.Product{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrating schema: %w", err)
	}

	logg.Info(ctx, "schema auto-migration completed")
	return nil
}
