package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute)
}

func TestFetchJSONRunsLoaderOnce(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "reports", "sales")
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return payload{Revenue: 120.50, Count: 4}, nil
	}

	var first payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 120.50, first.Revenue)
	require.Equal(t, 1, calls)

	var second payload
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, calls, "second fetch must hit the cache")
}

func TestBumpInvalidatesVersionedKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "reports", "dashboard")
	require.NoError(t, err)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, before, &out, func(ctx context.Context) (interface{}, error) {
		return payload{Count: 1}, nil
	}))

	require.NoError(t, c.Bump(ctx))

	after, err := c.BuildKey(ctx, "reports", "dashboard")
	require.NoError(t, err)
	require.NotEqual(t, before, after, "bump must rotate the key version")

	require.NoError(t, c.FetchJSON(ctx, after, &out, func(ctx context.Context) (interface{}, error) {
		return payload{Count: 2}, nil
	}))
	require.Equal(t, 2, out.Count)
}

func TestNilCacheDegradesToLoader(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "reports", "sales")
	require.NoError(t, err)
	require.Equal(t, "reports:sales", key)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return payload{Revenue: 9.99}, nil
	}))
	require.Equal(t, 9.99, out.Revenue)

	require.NoError(t, c.Bump(ctx))
}
