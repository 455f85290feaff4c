// Package control wires the store, fetch executor, cache, provider client,
// session and HTTP server together and manages their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/newsfeed/internal/api"
	"github.com/vietddude/newsfeed/internal/core/config"
	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/core/worker"
	"github.com/vietddude/newsfeed/internal/feed"
	"github.com/vietddude/newsfeed/internal/health"
	"github.com/vietddude/newsfeed/internal/infra/cache"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
	"github.com/vietddude/newsfeed/internal/infra/newsapi"
	"github.com/vietddude/newsfeed/internal/infra/storage"
	"github.com/vietddude/newsfeed/internal/infra/storage/postgres"
)

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg       *config.AppConfig
	store     storage.KeyValueStore
	db        *postgres.DB
	executor  *fetch.Executor
	cache     *cache.Cache
	provider  *newsapi.Client
	session   *feed.Session
	pruner    *worker.Pruner
	healthMon *health.Monitor
	server    *api.Server
	log       *slog.Logger
}

// New opens the configured store and builds every component on top of it.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	store, db, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	app := NewWithStore(cfg, store)
	app.db = db
	return app, nil
}

// NewWithStore builds the application over an already opened store.
func NewWithStore(cfg *config.AppConfig, store storage.KeyValueStore) *App {
	// 1. Fetch executor with optional client-side pacing
	executor := fetch.NewExecutor(cfg.Upstream.Fetch)
	if limiter := fetch.NewHostLimiter(cfg.Upstream.RatePerSecond, cfg.Upstream.Burst); limiter != nil {
		executor.SetLimiter(limiter)
	}

	// 2. Response cache and provider
	respCache := cache.New(store, executor, cfg.Cache)
	provider := newsapi.NewClient(cfg.Upstream.Provider, respCache)

	// 3. Session on the configured category
	session := feed.NewSession(domain.ParseCategory(cfg.Feed.Category), provider, provider)

	// 4. Health and HTTP surface
	var checker storage.HealthChecker
	if hc, ok := store.(storage.HealthChecker); ok {
		checker = hc
	}
	healthMon := health.NewMonitor(executor.Monitor(), checker, respCache)
	server := api.NewServer(session, respCache, healthMon, cfg.Server.Port)

	return &App{
		cfg:       cfg,
		store:     store,
		executor:  executor,
		cache:     respCache,
		provider:  provider,
		session:   session,
		pruner:    worker.NewPruner(respCache, cfg.Cache.Retention, cfg.Cache.SweepInterval),
		healthMon: healthMon,
		server:    server,
		log:       slog.Default(),
	}
}

// Session returns the feed session.
func (a *App) Session() *feed.Session {
	return a.session
}

// Cache returns the response cache.
func (a *App) Cache() *cache.Cache {
	return a.cache
}

// Provider returns the news provider client.
func (a *App) Provider() *newsapi.Client {
	return a.provider
}

// Executor returns the fetch executor.
func (a *App) Executor() *fetch.Executor {
	return a.executor
}

// Health returns the health monitor.
func (a *App) Health() *health.Monitor {
	return a.healthMon
}

// Server returns the HTTP server.
func (a *App) Server() *api.Server {
	return a.server
}

// Start starts the HTTP server and background workers.
func (a *App) Start(ctx context.Context) error {
	// Start HTTP Server
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("HTTP server stopped", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	// Start Pruner
	if a.cfg.Cache.Retention > 0 {
		a.log.Info("Starting cache pruner", "retention", a.cfg.Cache.Retention)
		go a.pruner.Start(ctx)
	}

	// Warm the session: first page and headlines
	go func() {
		if _, err := a.session.Refresh(ctx); err != nil {
			a.log.Warn("Initial feed load failed", "error", err)
		}
		if _, err := a.session.LoadHeadlines(ctx); err != nil {
			a.log.Warn("Initial headline load failed", "error", err)
		}
	}()

	return nil
}

// Stop stops the server, closes the session and the store.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping newsfeed...")

	a.session.Close()

	// Stop HTTP Server
	serverErr := a.server.Stop(ctx)

	if err := a.Close(); err != nil {
		a.log.Warn("Failed to close store", "error", err)
	}
	return serverErr
}

// Close releases the store. Used directly by one-shot commands that never
// call Start.
func (a *App) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Config returns the application configuration.
func (a *App) Config() *config.AppConfig {
	return a.cfg
}
