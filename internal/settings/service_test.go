package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
)

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Setting{}))
	return conn
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := &config.Config{}
	cfg.Automation.DefaultInterval = time.Second
	cfg.RateLimit.PixelQPS = 5
	cfg.RateLimit.CAPIQPS = 5

	svc, err := NewService(NewRepository(setupSettingsTestDB(t)), cfg)
	require.NoError(t, err)
	return svc
}

func TestApplyStoresVerbatimAndSkipsEmptyKeys(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Apply(ctx, map[string]string{
		KeyPctProfitMargin: "250",
		"  ":               "ignored",
		"custom_key":       "anything",
	})
	require.NoError(t, err)

	values, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "250", values[KeyPctProfitMargin])
	assert.Equal(t, "anything", values["custom_key"])
	assert.Len(t, values, 2)
}

func TestTogglesDefaultEnabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	toggles := svc.Toggles(ctx)
	assert.True(t, toggles.Pixel)
	assert.True(t, toggles.CAPI)

	require.NoError(t, svc.Apply(ctx, map[string]string{KeyAutomationPixel: "off"}))
	toggles = svc.Toggles(ctx)
	assert.False(t, toggles.Pixel)
	assert.True(t, toggles.CAPI)
}

func TestChaosDefaultsOff(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	chaos := svc.Chaos(ctx)
	assert.False(t, chaos.Drop)
	assert.False(t, chaos.Omit)
	assert.False(t, chaos.OmitUserData)
	assert.False(t, chaos.Malformed)

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyChaosDrop:      "true",
		KeyChaosMalformed: "1",
	}))
	chaos = svc.Chaos(ctx)
	assert.True(t, chaos.Drop)
	assert.True(t, chaos.Malformed)
	assert.False(t, chaos.Omit)
}

func TestBoolGarbageFallsBackToDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{KeyAutomationCAPI: "maybe"}))
	assert.True(t, svc.Toggles(ctx).CAPI)
}

func TestPercentClamping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyPctProfitMargin: "250",
		KeyPctPLTV:         "-10",
	}))

	cfg := svc.Enrichment(ctx)
	assert.Equal(t, 100, cfg.MarginPct)
	assert.Equal(t, 0, cfg.PLTVPct)
}

func TestRangeSwapsInvertedBounds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyValueMin: "300",
		KeyValueMax: "20",
	}))

	cfg := svc.Enrichment(ctx)
	assert.Equal(t, 20.0, cfg.ValueMin)
	assert.Equal(t, 300.0, cfg.ValueMax)
}

func TestEnrichmentDefaults(t *testing.T) {
	svc := newTestService(t)

	cfg := svc.Enrichment(context.Background())
	assert.Equal(t, 10.0, cfg.ValueMin)
	assert.Equal(t, 250.0, cfg.ValueMax)
	assert.Equal(t, 100, cfg.MarginPct)
	assert.Equal(t, 100, cfg.PLTVPct)
	assert.Equal(t, 50.0, cfg.PLTVMin)
	assert.Equal(t, 500.0, cfg.PLTVMax)
}

func TestIntervalFloor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{
		IntervalKey("Purchase"): "0.01",
		IntervalKey("PageView"): "2.5",
	}))

	assert.Equal(t, 250*time.Millisecond, svc.IntervalFor(ctx, "Purchase"))
	assert.Equal(t, 2500*time.Millisecond, svc.IntervalFor(ctx, "PageView"))
	// Unset names fall back to the configured default.
	assert.Equal(t, time.Second, svc.IntervalFor(ctx, "ViewContent"))
}

func TestCredentialsEnvWinsOverStore(t *testing.T) {
	db := setupSettingsTestDB(t)
	cfg := &config.Config{}
	cfg.CAPI.PixelID = "env-pixel"
	cfg.Automation.DefaultInterval = time.Second

	svc, err := NewService(NewRepository(db), cfg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyPixelID:     "store-pixel",
		KeyAccessToken: "store-token",
	}))

	creds := svc.Credentials(ctx)
	assert.Equal(t, "env-pixel", creds.PixelID)
	assert.Equal(t, "store-token", creds.AccessToken)
}

func TestTestEventCodeBehindToggle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyTestEventCode: "TEST123",
	}))
	assert.Empty(t, svc.Credentials(ctx).TestEventCode)

	require.NoError(t, svc.Apply(ctx, map[string]string{
		KeyUseTestEventCode: "true",
	}))
	assert.Equal(t, "TEST123", svc.Credentials(ctx).TestEventCode)
}

func TestGraphVersionOverrideFromStore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.Empty(t, svc.Credentials(ctx).GraphVersion)

	require.NoError(t, svc.Apply(ctx, map[string]string{KeyGraphVer: "v18.0"}))
	assert.Equal(t, "v18.0", svc.Credentials(ctx).GraphVersion)
}

func TestQPSOverride(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pixel, capiQPS := svc.QPS(ctx)
	assert.Equal(t, 5.0, pixel)
	assert.Equal(t, 5.0, capiQPS)

	require.NoError(t, svc.Apply(ctx, map[string]string{KeyQPSPixel: "0"}))
	pixel, _ = svc.QPS(ctx)
	assert.Equal(t, 0.0, pixel)
}
