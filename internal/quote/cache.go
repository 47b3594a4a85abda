package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/brokerage/internal/model"
)

// CachedProvider wraps a primary Provider with a Redis read-through cache.
// Quotes are the only read in the system that tolerates staleness; positions
// and cash are always read fresh from the store.
type CachedProvider struct {
	primary Provider
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedProvider creates a cached wrapper around a primary provider.
func NewCachedProvider(primary Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (p *CachedProvider) Lookup(ctx context.Context, symbol string) (*model.Quote, error) {
	// Try cache.
	data, err := p.rdb.Get(ctx, quoteKey(symbol)).Bytes()
	if err == nil {
		var q model.Quote
		if json.Unmarshal(data, &q) == nil {
			return &q, nil
		}
	}

	// Unknown symbols are cached too, as a negative entry, so repeated
	// lookups of garbage symbols do not hammer the upstream API.
	if p.rdb.Exists(ctx, missKey(symbol)).Val() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	// Cache miss: read from primary.
	q, err := p.primary.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, ErrUnknownSymbol) {
			p.rdb.Set(ctx, missKey(symbol), "1", p.ttl)
		}
		return nil, err
	}

	if data, err := json.Marshal(q); err == nil {
		p.rdb.Set(ctx, quoteKey(symbol), data, p.ttl)
	}
	return q, nil
}

func quoteKey(symbol string) string { return fmt.Sprintf("quote:%s", symbol) }
func missKey(symbol string) string  { return fmt.Sprintf("quote:miss:%s", symbol) }
