package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/newsfeed/internal/core/config"
	redisclient "github.com/vietddude/newsfeed/internal/infra/redis"
	"github.com/vietddude/newsfeed/internal/infra/storage"
	"github.com/vietddude/newsfeed/internal/infra/storage/memory"
	"github.com/vietddude/newsfeed/internal/infra/storage/postgres"
	"github.com/vietddude/newsfeed/internal/infra/storage/sqlite"
)

// OpenStore opens the key-value store selected by cfg.Driver. The returned
// DB is non-nil only for the postgres driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (storage.KeyValueStore, *postgres.DB, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		slog.Info("Using Memory storage")
		return memory.NewMemoryStorage(), nil, nil

	case config.DriverRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis storage")
		return redisclient.NewKVRepo(client), nil, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init sqlite: %w", err)
		}
		slog.Info("Using SQLite storage", "path", cfg.SQLite.Path)
		return store, nil, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return postgres.NewKVRepo(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
