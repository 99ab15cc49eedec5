package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tickerpulse/internal/catalog"
	"tickerpulse/internal/observability"
)

// Cache TTLs. Historical prices never change, so hits can live long;
// unavailable results are cached briefly to damp repeat lookups while
// still picking up late oracle data.
const (
	DefaultCacheTTL         = 24 * time.Hour
	DefaultNegativeCacheTTL = 10 * time.Minute

	unavailableMarker = "unavailable"
)

// CachedClient is a cache-aside wrapper around a Client backed by redis.
// Redis outages degrade gracefully: every cache failure falls through to
// the inner client.
type CachedClient struct {
	inner  Client
	rdb    *redis.Client
	ttl    time.Duration
	negTTL time.Duration
	now    func() time.Time
	logger *log.Logger
}

// CacheOptions configures a CachedClient.
type CacheOptions struct {
	Inner       Client
	Redis       *redis.Client
	TTL         time.Duration    // default 24h
	NegativeTTL time.Duration    // default 10m
	NowFunc     func() time.Time // clock override for tests
	Logger      *log.Logger
}

// NewCachedClient creates a redis-backed price cache.
func NewCachedClient(opts CacheOptions) *CachedClient {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	negTTL := opts.NegativeTTL
	if negTTL == 0 {
		negTTL = DefaultNegativeCacheTTL
	}
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &CachedClient{
		inner:  opts.Inner,
		rdb:    opts.Redis,
		ttl:    ttl,
		negTTL: negTTL,
		now:    now,
		logger: logger,
	}
}

// Compile-time interface check.
var _ Client = (*CachedClient)(nil)

// PriceAt checks the cache before delegating to the inner client.
func (c *CachedClient) PriceAt(ctx context.Context, address string, chain catalog.Chain, unixTime int64) (float64, error) {
	key := cacheKey(address, chain, unixTime)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if cached == unavailableMarker {
			observability.RecordCacheHit()
			return 0, ErrUnavailable
		}
		if price, perr := strconv.ParseFloat(cached, 64); perr == nil {
			observability.RecordCacheHit()
			return price, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Printf("price cache read failed, falling through: %v", err)
	}

	observability.RecordCacheMiss()

	price, err := c.inner.PriceAt(ctx, address, chain, unixTime)
	if err != nil {
		// A future target is unavailable only until the clock catches
		// up, so caching that result would outlive its own cause.
		if unixTime <= c.now().Unix() {
			c.set(ctx, key, unavailableMarker, c.negTTL)
		}
		return 0, err
	}

	c.set(ctx, key, strconv.FormatFloat(price, 'g', -1, 64), c.ttl)
	return price, nil
}

func (c *CachedClient) set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Printf("price cache write failed: %v", err)
	}
}

func cacheKey(address string, chain catalog.Chain, unixTime int64) string {
	return fmt.Sprintf("price:%s:%s:%d", chain, address, unixTime)
}
