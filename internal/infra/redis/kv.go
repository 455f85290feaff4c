package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/newsfeed/internal/infra/storage"
)

// scanBatch is the COUNT hint passed to SCAN when listing keys.
const scanBatch = 200

// KVRepo implements storage.KeyValueStore on plain Redis strings.
// Values are stored without expiry; staleness is decided by the reader.
type KVRepo struct {
	client *Client
}

// NewKVRepo creates a new Redis-backed key-value repository.
func NewKVRepo(client *Client) *KVRepo {
	return &KVRepo{client: client}
}

// Get retrieves a value by key.
func (r *KVRepo) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// Set stores a value without expiry.
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	if err := r.client.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// Keys lists keys with the given prefix using SCAN, never KEYS.
func (r *KVRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	iter := r.client.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the shared client.
func (r *KVRepo) Close() error {
	return r.client.Close()
}

// Health pings Redis.
func (r *KVRepo) Health(ctx context.Context) error {
	return r.client.Health(ctx)
}

// escapeGlob escapes the glob metacharacters understood by MATCH.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
