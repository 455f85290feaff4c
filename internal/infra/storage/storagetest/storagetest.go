// Package storagetest holds a behavioral test suite shared by every
// storage.KeyValueStore backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/newsfeed/internal/infra/storage"
)

// Run exercises store. The store must start empty.
func Run(t *testing.T, store storage.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", `{"ts":"x"}`))
		v, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, `{"ts":"x"}`, v)

		require.NoError(t, store.Set(ctx, "k1", "second"))
		v, err = store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k2", "v"))
		require.NoError(t, store.Delete(ctx, "k2"))
		_, err := store.Get(ctx, "k2")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		for _, k := range []string{"app:http:a", "app:http:b", "app:httpx", "APP:http:c", "other:http:a"} {
			require.NoError(t, store.Set(ctx, k, "v"))
		}

		keys, err := store.Keys(ctx, "app:http:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"app:http:a", "app:http:b"}, keys)

		keys, err = store.Keys(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("prefix metacharacters are literal", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "p%_*?:1", "v"))
		require.NoError(t, store.Set(ctx, "pXY*?:2", "v"))

		keys, err := store.Keys(ctx, "p%_*?:")
		require.NoError(t, err)
		assert.Equal(t, []string{"p%_*?:1"}, keys)
	})

	t.Run("health", func(t *testing.T) {
		if hc, ok := store.(storage.HealthChecker); ok {
			assert.NoError(t, hc.Health(ctx))
		}
	})
}
