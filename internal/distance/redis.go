package distance

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"roadplan/internal/types"
)

// RedisCached shares lookups between workers and processes. Redis errors
// degrade to a direct call.
type RedisCached struct {
	next   Service
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	Logger *log.Logger
}

func NewRedisCached(next Service, rdb *redis.Client, ttl time.Duration) *RedisCached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCached{next: next, rdb: rdb, ttl: ttl, prefix: "roadplan:travel:"}
}

func (c *RedisCached) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (c *RedisCached) TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error) {
	key := c.prefix + pairKey(from, to, mode)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var est types.TravelEstimate
		if jerr := json.Unmarshal(raw, &est); jerr == nil {
			return est, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logf("distance: redis get %s: %v", key, err)
	}

	est, err := c.next.TravelTime(ctx, from, to, mode)
	if err != nil {
		return est, err
	}
	if b, jerr := json.Marshal(est); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.logf("distance: redis set %s: %v", key, serr)
		}
	}
	return est, nil
}
