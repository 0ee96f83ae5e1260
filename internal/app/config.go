package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/storefront-cart/internal/observability"
	"github.com/yungbote/storefront-cart/internal/platform/config"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	LogMode  string `env:"LOG_MODE" envDefault:"development"`
	LogFile  string `env:"LOG_FILE"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	StoreBackend string        `env:"CART_STORE_BACKEND" envDefault:"memory"`
	KeyPrefix    string        `env:"CART_KEY_PREFIX" envDefault:"cart-storage"`
	RecordTTL    time.Duration `env:"CART_RECORD_TTL" envDefault:"0s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"cart-changes"`

	SQLitePath  string `env:"SQLITE_PATH" envDefault:"cart.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	SessionSecret string        `env:"CART_SESSION_SECRET"`
	SessionTTL    time.Duration `env:"CART_SESSION_TTL" envDefault:"720h"`
	SecureCookie  bool          `env:"CART_SECURE_COOKIE" envDefault:"false"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:","`

	SyncEnabled    bool `env:"CART_SYNC_ENABLED" envDefault:"false"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	CatalogPath string `env:"CATALOG_PATH"`

	Otel observability.OtelConfig
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("CART_STORE_BACKEND=redis requires REDIS_ADDR")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("CART_STORE_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown CART_STORE_BACKEND %q", c.StoreBackend)
	}
	if c.SyncEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("CART_SYNC_ENABLED requires REDIS_ADDR")
	}
	if c.RecordTTL < 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("CART_RECORD_TTL must be >= 0 and CART_SESSION_TTL > 0")
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		return fmt.Errorf("CART_KEY_PREFIX must not be empty")
	}
	return nil
}
