package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is applied to every environment variable consumed by the app.
const EnvPrefix = "BEACONSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	CAPI         CAPIConfig
	Automation   AutomationConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(cfg.FeatureFlags); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BEACONSHOP_APP_ENV" default:"dev"`
	Port         string `envconfig:"BEACONSHOP_APP_PORT" default:"8080"`
	BaseURL      string `envconfig:"BEACONSHOP_BASE_URL" default:"http://127.0.0.1:8080"`
	LogLevel     string `envconfig:"BEACONSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BEACONSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"BEACONSHOP_DB_DSN"`
	SQLitePath string `envconfig:"BEACONSHOP_SQLITE_PATH" default:"/var/tmp/beaconshop.db"`

	MaxOpenConns    int           `envconfig:"BEACONSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BEACONSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BEACONSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BEACONSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate(flags FeatureFlagsConfig) error {
	if flags.UseSQLite {
		return nil
	}
	if db.DSN == "" {
		return fmt.Errorf("either BEACONSHOP_DB_DSN or BEACONSHOP_USE_SQLITE is required")
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"BEACONSHOP_REDIS_URL"`
	Address      string        `envconfig:"BEACONSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"BEACONSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BEACONSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BEACONSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BEACONSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BEACONSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BEACONSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BEACONSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured at all. The API can
// run without redis; the automation lock then degrades to process-local.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// CAPIConfig carries the conversion API credentials and transport knobs.
// PixelID/AccessToken/TestEventCode may also be overridden at runtime through
// the settings store; env values win when both are present.
type CAPIConfig struct {
	PixelID       string        `envconfig:"BEACONSHOP_PIXEL_ID"`
	AccessToken   string        `envconfig:"BEACONSHOP_ACCESS_TOKEN"`
	TestEventCode string        `envconfig:"BEACONSHOP_TEST_EVENT_CODE"`
	GraphBaseURL  string        `envconfig:"BEACONSHOP_GRAPH_BASE_URL" default:"https://graph.facebook.com"`
	GraphVersion  string        `envconfig:"BEACONSHOP_GRAPH_VER" default:"v20.0"`
	Timeout       time.Duration `envconfig:"BEACONSHOP_CAPI_TIMEOUT" default:"8s"`
}

type AutomationConfig struct {
	MaxConcurrency  int           `envconfig:"BEACONSHOP_AUTOMATION_MAX_CONCURRENCY" default:"10"`
	DefaultInterval time.Duration `envconfig:"BEACONSHOP_AUTOMATION_DEFAULT_INTERVAL" default:"1s"`
	StopTimeout     time.Duration `envconfig:"BEACONSHOP_AUTOMATION_STOP_TIMEOUT" default:"5s"`
}

type RateLimitConfig struct {
	PixelQPS float64 `envconfig:"BEACONSHOP_RATE_LIMIT_QPS_PIXEL" default:"5"`
	CAPIQPS  float64 `envconfig:"BEACONSHOP_RATE_LIMIT_QPS_CAPI" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BEACONSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BEACONSHOP_AUTO_MIGRATE" default:"false"`
	SeedCatalog bool `envconfig:"BEACONSHOP_SEED_CATALOG" default:"true"`
}
