package places

import (
	"context"
	"errors"
	"strings"
	"time"

	memcache "roadplan/internal/cache/memory"
	"roadplan/internal/types"
)

type cached struct {
	details  types.PlaceDetails
	notFound bool
}

// CachedValidator remembers lookups, including misses, for a TTL.
// Transport errors are never cached.
type CachedValidator struct {
	next  Validator
	cache *memcache.LRUTTL[string, cached]
}

func NewCachedValidator(next Validator, maxEntries int, ttl time.Duration) *CachedValidator {
	if maxEntries <= 0 {
		maxEntries = 2048
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedValidator{
		next:  next,
		cache: memcache.NewLRUTTL[string, cached](maxEntries, 0, ttl),
	}
}

func cacheKey(name, country string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(country))
}

func (c *CachedValidator) Validate(ctx context.Context, name, country string) (types.PlaceDetails, error) {
	key := cacheKey(name, country)
	if hit, ok := c.cache.Get(key); ok {
		if hit.notFound {
			return types.PlaceDetails{}, ErrNotFound
		}
		return hit.details, nil
	}
	d, err := c.next.Validate(ctx, name, country)
	switch {
	case err == nil:
		c.cache.Set(key, cached{details: d}, 0)
	case errors.Is(err, ErrNotFound):
		c.cache.Set(key, cached{notFound: true}, 0)
	}
	return d, err
}
