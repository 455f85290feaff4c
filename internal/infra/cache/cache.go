// Package cache implements the TTL response cache sitting in front of the
// fetch executor.
//
// Entries live in a storage.KeyValueStore under a reserved prefix and are
// never expired by the store: freshness is decided at read time from the
// entry timestamp and the caller's TTL. When a refetch fails the last good
// payload can be served instead of the error (stale-on-error).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/newsfeed/internal/infra/fetch"
	"github.com/vietddude/newsfeed/internal/infra/storage"
	"github.com/vietddude/newsfeed/internal/metrics"
)

const (
	DefaultPrefix = "newsfeed:http:"
	DefaultTTL    = time.Hour
)

// Fetcher performs the network request behind a cache miss.
type Fetcher interface {
	Execute(ctx context.Context, req fetch.Request) ([]byte, error)
}

// Config holds cache settings.
type Config struct {
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
	Coalesce      bool          `yaml:"coalesce"`
	Retention     time.Duration `yaml:"retention"`      // 0 = keep entries until cleared
	SweepInterval time.Duration `yaml:"sweep_interval"` // 0 = derived from Retention
}

// Options controls a single Resolve call.
type Options struct {
	TTL               time.Duration // 0 = cache default
	Force             bool          // skip the freshness check
	AllowStaleOnError bool          // serve the last payload if the fetch fails
}

// Outcome says how a Resolve was served.
type Outcome int

const (
	OutcomeHit       Outcome = iota // fresh entry, no network
	OutcomeMiss                     // no usable entry, fetched
	OutcomeRefreshed                // forced fetch
	OutcomeStale                    // fetch failed, previous payload served
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Entry is the stored form of a cached response.
type Entry struct {
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// Cache resolves requests through a durable store.
type Cache struct {
	store   storage.KeyValueStore
	fetcher Fetcher
	prefix  string
	ttl     time.Duration
	group   *singleflight.Group
	now     func() time.Time
	log     *slog.Logger
}

// New creates a cache over store that fetches misses with fetcher.
func New(store storage.KeyValueStore, fetcher Fetcher, cfg Config) *Cache {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		now:     time.Now,
		log:     slog.Default().With("component", "cache"),
	}
	if cfg.Coalesce {
		c.group = &singleflight.Group{}
	}
	return c
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Prefix returns the reserved key-space prefix.
func (c *Cache) Prefix() string {
	return c.prefix
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key returns the store key for a signature.
func (c *Cache) Key(sig string) string {
	return c.prefix + HashSignature(sig)
}

// Resolve returns the payload for req, from the store when fresh and from
// the network otherwise. Errors from the network are *fetch.Error.
func (c *Cache) Resolve(ctx context.Context, req fetch.Request, opts Options) ([]byte, Outcome, error) {
	key := c.Key(Signature(req))
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.ttl
	}

	var prior *Entry
	if !opts.Force {
		prior = c.load(ctx, key)
		if prior != nil && c.now().Sub(prior.Timestamp) < ttl {
			metrics.CacheResolves.WithLabelValues(OutcomeHit.String()).Inc()
			return prior.Payload, OutcomeHit, nil
		}
	}

	payload, err := c.fetch(ctx, key, req)
	if err != nil {
		if opts.AllowStaleOnError {
			if prior == nil && opts.Force {
				prior = c.load(ctx, key)
			}
			if prior != nil {
				c.log.Warn("Serving stale entry after fetch failure",
					"key", key,
					"age", c.now().Sub(prior.Timestamp).Round(time.Second),
					"error", err,
				)
				metrics.CacheResolves.WithLabelValues(OutcomeStale.String()).Inc()
				return prior.Payload, OutcomeStale, nil
			}
		}
		metrics.CacheResolves.WithLabelValues("error").Inc()
		return nil, OutcomeMiss, err
	}

	outcome := OutcomeMiss
	if opts.Force {
		outcome = OutcomeRefreshed
	}
	metrics.CacheResolves.WithLabelValues(outcome.String()).Inc()
	return payload, outcome, nil
}

// fetch calls the network and persists the result. With coalescing enabled
// concurrent callers for the same key share one call; each caller still
// honors its own context.
func (c *Cache) fetch(ctx context.Context, key string, req fetch.Request) ([]byte, error) {
	if c.group == nil {
		return c.fetchAndStore(ctx, key, req)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetchAndStore(context.WithoutCancel(ctx), key, req)
	})
	select {
	case <-ctx.Done():
		return nil, fetch.Classify(0, nil, nil, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) fetchAndStore(ctx context.Context, key string, req fetch.Request) ([]byte, error) {
	payload, err := c.fetcher.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(Entry{Timestamp: c.now(), Payload: payload})
	if err != nil {
		// Not valid JSON; hand it back uncached.
		return payload, nil
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		metrics.CacheStoreErrors.WithLabelValues("set").Inc()
		c.log.Warn("Failed to persist cache entry", "key", key, "error", err)
	}
	return payload, nil
}

// load reads and decodes an entry. Missing, unreadable and corrupt entries
// all come back as nil.
func (c *Cache) load(ctx context.Context, key string) *Entry {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			metrics.CacheStoreErrors.WithLabelValues("get").Inc()
			c.log.Warn("Failed to read cache entry", "key", key, "error", err)
		}
		return nil
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || len(e.Payload) == 0 {
		c.log.Debug("Ignoring corrupt cache entry", "key", key)
		return nil
	}
	return &e
}

// Lookup returns the stored entry for req without touching the network.
func (c *Cache) Lookup(ctx context.Context, req fetch.Request) (*Entry, bool) {
	e := c.load(ctx, c.Key(Signature(req)))
	return e, e != nil
}

// Invalidate removes the entry for req.
func (c *Cache) Invalidate(ctx context.Context, req fetch.Request) error {
	return c.InvalidateSignature(ctx, Signature(req))
}

// InvalidateSignature removes the entry for a signature.
func (c *Cache) InvalidateSignature(ctx context.Context, sig string) error {
	if err := c.store.Delete(ctx, c.Key(sig)); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	return nil
}

// Clear removes every entry under the cache prefix and returns how many
// keys were deleted. Keys outside the prefix are never touched.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	removed := 0
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			return removed, fmt.Errorf("delete %s: %w", k, err)
		}
		removed++
	}
	c.log.Info("Cache cleared", "removed", removed)
	return removed, nil
}

// Sweep deletes entries older than maxAge, and entries that cannot be
// decoded. It returns the number of deleted keys.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	now := c.now()
	removed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		raw, err := c.store.Get(ctx, k)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("read %s: %w", k, err)
		}
		var e Entry
		if json.Unmarshal([]byte(raw), &e) == nil && now.Sub(e.Timestamp) <= maxAge {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			return removed, fmt.Errorf("delete %s: %w", k, err)
		}
		removed++
	}
	return removed, nil
}

// Stats reports the number of entries under the cache prefix.
func (c *Cache) Stats(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
