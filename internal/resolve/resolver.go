// Package resolve turns (mention, offset) pairs into point-in-time
// prices via the catalogs and the price oracle.
package resolve

import (
	"context"
	"time"

	"tickerpulse/internal/catalog"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/oracle"
)

// Resolver computes offset target timestamps and resolves them to prices.
type Resolver struct {
	catalogs *catalog.Catalog
	client   oracle.Client
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNowFunc overrides the clock used for the future-target guard.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// New creates a Resolver.
func New(catalogs *catalog.Catalog, client oracle.Client, opts ...Option) *Resolver {
	r := &Resolver{
		catalogs: catalogs,
		client:   client,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the price for the mention's ticker at
// message time + offset duration. Returns oracle.ErrUnavailable when:
//   - the target timestamp is in the future (no network call is made)
//   - the ticker resolves only via the ethereum catalog
//   - the oracle has no data for the target
//
// Ethereum-catalog tickers are rejected before the oracle is consulted.
// The upstream system never finished its ethereum path and always
// returned no data for those tickers; that behavior is kept as-is rather
// than silently enabling a chain the rest of the pipeline never handled.
func (r *Resolver) Resolve(ctx context.Context, m domain.Mention, off domain.Offset) (float64, error) {
	target := m.Message.Timestamp.Add(off.Duration())
	if target.After(r.now()) {
		return 0, oracle.ErrUnavailable
	}

	address, chain, ok := r.catalogs.Resolve(m.Symbol)
	if !ok {
		return 0, oracle.ErrUnavailable
	}
	if chain == catalog.ChainEthereum {
		return 0, oracle.ErrUnavailable
	}

	return r.client.PriceAt(ctx, address, chain, target.Unix())
}
