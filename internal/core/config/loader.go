package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/newsfeed/internal/infra/cache"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references from the
// environment and applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Upstream.Token() == "" {
		c.Upstream.Provider.Token = os.Getenv("NEWS_API_TOKEN")
	}
	c.Upstream.Provider = c.Upstream.Provider.WithDefaults()
	c.Upstream.Fetch = c.Upstream.Fetch.WithDefaults()
	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = 1
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = cache.DefaultPrefix
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = cache.DefaultTTL
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "newsfeed.db"
	}
	if c.Feed.Category == "" {
		c.Feed.Category = "all"
	}
}

// Validate rejects settings that cannot work.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Store.Redis.URL == "" {
			return fmt.Errorf("store.redis.url is required for the redis driver")
		}
	case DriverPostgres:
		if c.Store.Postgres.URL == "" {
			return fmt.Errorf("store.postgres.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Cache.Retention > 0 && c.Cache.Retention < c.Cache.TTL {
		return fmt.Errorf("cache.retention (%s) must not be shorter than cache.ttl (%s)", c.Cache.Retention, c.Cache.TTL)
	}
	return nil
}

// Token returns the provider API token.
func (u UpstreamConfig) Token() string {
	return u.Provider.Token
}
