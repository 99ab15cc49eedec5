package oracle

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tickerpulse/internal/catalog"
)

// countingClient serves canned prices and counts upstream lookups.
type countingClient struct {
	price float64
	err   error
	calls int
}

func (c *countingClient) PriceAt(context.Context, string, catalog.Chain, int64) (float64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.price, nil
}

// setupTestRedis starts a redis container and returns a connected client.
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	require.NoError(t, rdb.Ping(ctx).Err())

	cleanup := func() {
		rdb.Close()
		_ = container.Terminate(ctx)
	}
	return rdb, cleanup
}

func TestCachedClient_SecondLookupHitsCache(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := &countingClient{price: 42.5}
	cached := NewCachedClient(CacheOptions{
		Inner:  inner,
		Redis:  rdb,
		Logger: log.New(io.Discard, "", 0),
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		price, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, 1700000000)
		require.NoError(t, err)
		require.InDelta(t, 42.5, price, 1e-9)
	}
	require.Equal(t, 1, inner.calls, "repeat lookups must be served from cache")

	// Different key parameters miss the cache.
	_, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, 1700000001)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestCachedClient_CachesUnavailable(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := &countingClient{err: ErrUnavailable}
	cached := NewCachedClient(CacheOptions{
		Inner:  inner,
		Redis:  rdb,
		Logger: log.New(io.Discard, "", 0),
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, 1700000000)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, 1, inner.calls, "unavailable results must be negatively cached")
}

func TestCachedClient_FutureTargetNotNegativelyCached(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inner := &countingClient{err: ErrUnavailable}
	cached := NewCachedClient(CacheOptions{
		Inner:   inner,
		Redis:   rdb,
		NowFunc: func() time.Time { return now },
		Logger:  log.New(io.Discard, "", 0),
	})

	// The target is still in the future: unavailable self-heals once the
	// clock passes it, so the result must not be negatively cached.
	future := now.Add(time.Hour).Unix()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, future)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, 2, inner.calls, "future targets must retry the inner client")

	// Once the clock reaches the target the price is cached as usual.
	now = now.Add(2 * time.Hour)
	inner.err = nil
	inner.price = 7.25

	price, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, future)
	require.NoError(t, err)
	require.InDelta(t, 7.25, price, 1e-9)

	price, err = cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, future)
	require.NoError(t, err)
	require.InDelta(t, 7.25, price, 1e-9)
	require.Equal(t, 3, inner.calls)
}

func TestCachedClient_NegativeEntryExpires(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := &countingClient{err: ErrUnavailable}
	cached := NewCachedClient(CacheOptions{
		Inner:       inner,
		Redis:       rdb,
		NegativeTTL: 100 * time.Millisecond,
		Logger:      log.New(io.Discard, "", 0),
	})

	ctx := context.Background()
	_, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, 1700000000)
	require.ErrorIs(t, err, ErrUnavailable)

	// Once the short negative entry lapses, late oracle data is picked up.
	inner.err = nil
	inner.price = 10

	require.Eventually(t, func() bool {
		price, err := cached.PriceAt(ctx, "Mint111", catalog.ChainSolana, 1700000000)
		return err == nil && price == 10
	}, 2*time.Second, 50*time.Millisecond)
}

func TestCachedClient_RedisOutageFallsThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Point at a port nothing listens on: every cache op fails.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer rdb.Close()

	inner := &countingClient{price: 42.5}
	cached := NewCachedClient(CacheOptions{
		Inner:  inner,
		Redis:  rdb,
		Logger: log.New(io.Discard, "", 0),
	})

	price, err := cached.PriceAt(context.Background(), "Mint111", catalog.ChainSolana, 1700000000)
	require.NoError(t, err)
	require.InDelta(t, 42.5, price, 1e-9)
	require.Equal(t, 1, inner.calls, "cache outage must fall through to the inner client")
}
