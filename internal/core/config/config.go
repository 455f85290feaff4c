package config

import (
	"time"

	"github.com/vietddude/newsfeed/internal/infra/cache"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
	"github.com/vietddude/newsfeed/internal/infra/newsapi"
	redisclient "github.com/vietddude/newsfeed/internal/infra/redis"
	"github.com/vietddude/newsfeed/internal/infra/storage/postgres"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    cache.Config   `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Feed     FeedConfig     `yaml:"feed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// UpstreamConfig holds the news provider and the fetch policy.
type UpstreamConfig struct {
	Provider      newsapi.Config `yaml:"provider"`
	Fetch         fetch.Config   `yaml:"fetch"`
	RatePerSecond float64        `yaml:"rate_per_second"` // 0 = no client-side pacing
	Burst         int            `yaml:"burst"`
}

// StoreConfig selects and configures the durable key-value store.
type StoreConfig struct {
	Driver   string             `yaml:"driver"` // memory, redis, sqlite, postgres
	Redis    redisclient.Config `yaml:"redis"`
	SQLite   SQLiteConfig       `yaml:"sqlite"`
	Postgres postgres.Config    `yaml:"postgres"`
}

// SQLiteConfig holds the SQLite store settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// FeedConfig holds session defaults.
type FeedConfig struct {
	Category string `yaml:"category"` // initial category, "all" by default
}
