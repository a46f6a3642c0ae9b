package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (COUPONS_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string          `default:"0.0.0.0:8080" usage:"API server listen address" yaml:"addr"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `env:"RATE_LIMIT" yaml:"rate_limit"`
	Graceful  GracefulConfig  `yaml:"graceful"`
}

// StorageConfig selects and configures the coupon store.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Coupon store: postgres, mongo or memory" yaml:"driver"`
	DatabaseURL   string `env:"DATABASE_URL" usage:"PostgreSQL connection URL (or DATABASE_URL)" yaml:"database_url"`
	MongoURI      string `env:"MONGO_URI" usage:"MongoDB connection URI (or MONGODB_URI)" yaml:"mongo_uri"`
	MongoDatabase string `default:"coupons" env:"MONGO_DATABASE" usage:"MongoDB database name" yaml:"mongo_database"`
}

// CacheConfig enables the Redis read-through cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `env:"REDIS_ADDR" usage:"Redis address for the coupon cache" yaml:"redis_addr"`
	TTL       time.Duration `default:"15m" usage:"Base TTL of cached coupons" yaml:"ttl"`
}

// EventsConfig enables coupon lifecycle events when Brokers is set.
type EventsConfig struct {
	Brokers []string `usage:"Kafka brokers for coupon events" yaml:"brokers"`
	Topic   string   `default:"coupon-events" usage:"Kafka topic for coupon events" yaml:"topic"`
}

// RateLimitConfig controls the per-client token bucket. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `default:"50" usage:"Sustained requests per second per client" yaml:"rps"`
	Burst int     `default:"100" usage:"Burst size per client" yaml:"burst"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s" env:"READINESS_DELAY" usage:"Delay after readiness=false before shutdown" flag:"readiness-delay" yaml:"readiness_delay"`
	ShutdownTimeout time.Duration `default:"15s" env:"SHUTDOWN_TIMEOUT" usage:"Maximum shutdown duration" flag:"shutdown-timeout" yaml:"shutdown_timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "COUPONS",
		Files:     []string{"config.yaml", "/etc/coupons/config.yaml"},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	acfg.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's COUPONS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = os.Getenv("MONGODB_URI")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set COUPONS_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set COUPONS_STORAGE_MONGO_URI or MONGODB_URI")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q: use postgres, mongo or memory", c.Storage.Driver)
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return errors.New("cache TTL must be positive")
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return errors.New("events topic is required when brokers are set")
	}
	return nil
}
