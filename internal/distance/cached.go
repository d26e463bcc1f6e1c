package distance

import (
	"context"
	"fmt"
	"time"

	memcache "roadplan/internal/cache/memory"
	"roadplan/internal/types"
)

// Cached memoises successful lookups. Points are keyed at ~1 m precision
// and the pair is direction sensitive.
type Cached struct {
	next  Service
	cache *memcache.LRUTTL[string, types.TravelEstimate]
}

func NewCached(next Service, maxEntries int, ttl time.Duration) *Cached {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cached{
		next:  next,
		cache: memcache.NewLRUTTL[string, types.TravelEstimate](maxEntries, 0, ttl),
	}
}

func pairKey(from, to types.LatLng, mode types.TravelMode) string {
	return fmt.Sprintf("%s|%.5f,%.5f|%.5f,%.5f", mode, from.Lat, from.Lng, to.Lat, to.Lng)
}

func (c *Cached) TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error) {
	key := pairKey(from, to, mode)
	if est, ok := c.cache.Get(key); ok {
		return est, nil
	}
	est, err := c.next.TravelTime(ctx, from, to, mode)
	if err != nil {
		return est, err
	}
	c.cache.Set(key, est, 0)
	return est, nil
}
