// Package artifact puts an LRU read-through cache in front of an artifact
// store so repeated report reads from the HTTP surface skip the origin.
package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	memcache "roadplan/internal/cache/memory"
	artifactrepo "roadplan/internal/repository/artifact"
)

type Store = artifactrepo.Store

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	BlobMaxBytes   int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 1024,
		BlobMaxBytes:   32 * 1024 * 1024,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 256,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.BlobTTL <= 0 {
		c.BlobTTL = def.BlobTTL
	}
	if c.BlobMaxEntries <= 0 {
		c.BlobMaxEntries = def.BlobMaxEntries
	}
	if c.BlobMaxBytes < 0 {
		c.BlobMaxBytes = def.BlobMaxBytes
	}
	if c.ListTTL <= 0 {
		c.ListTTL = def.ListTTL
	}
	if c.ListMaxEntries <= 0 {
		c.ListMaxEntries = def.ListMaxEntries
	}
	if c.URLTTL <= 0 {
		c.URLTTL = def.URLTTL
	}
	if c.URLMaxEntries <= 0 {
		c.URLMaxEntries = def.URLMaxEntries
	}
	return c
}

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type metrics struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

type CachedStore struct {
	origin Store

	blobs *memcache.LRUTTL[string, []byte]
	lists *memcache.LRUTTL[string, []string]
	urls  *memcache.LRUTTL[string, string]
	m     metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	cfg = cfg.withDefaults()
	return &CachedStore{
		origin: origin,
		blobs:  memcache.NewLRUTTL[string, []byte](cfg.BlobMaxEntries, cfg.BlobMaxBytes, cfg.BlobTTL),
		lists:  memcache.NewLRUTTL[string, []string](cfg.ListMaxEntries, 0, cfg.ListTTL),
		urls:   memcache.NewLRUTTL[string, string](cfg.URLMaxEntries, 0, cfg.URLTTL),
	}
}

// Put writes through to the origin and invalidates the run listing.
func (s *CachedStore) Put(ctx context.Context, runID, path string, content []byte) error {
	s.m.originWrites.Add(1)
	if err := s.origin.Put(ctx, runID, path, content); err != nil {
		s.m.originWriteErr.Add(1)
		return err
	}
	key := cacheKey(runID, path)
	copied := append([]byte(nil), content...)
	s.blobs.Set(key, copied, len(copied))
	s.lists.Delete(strings.TrimSpace(runID))
	s.urls.Delete(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, path string) ([]byte, error) {
	raw, err := readThrough(s, s.blobs, cacheKey(runID, path), func() ([]byte, error) {
		return s.origin.Get(ctx, runID, path)
	}, func(b []byte) int { return len(b) })
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), raw...), nil
}

func (s *CachedStore) GetURL(ctx context.Context, runID, path string) (string, error) {
	return readThrough(s, s.urls, cacheKey(runID, path), func() (string, error) {
		return s.origin.GetURL(ctx, runID, path)
	}, func(u string) int { return len(u) })
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	list, err := readThrough(s, s.lists, runID, func() ([]string, error) {
		return s.origin.List(ctx, runID)
	}, func(l []string) int {
		n := 0
		for _, v := range l {
			n += len(v)
		}
		return n
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), list...), nil
}

// readThrough serves key from c or loads it from the origin. Empty
// values (an unsupported URL, an empty run) are not cached.
func readThrough[V any](s *CachedStore, c *memcache.LRUTTL[string, V], key string, load func() (V, error), size func(V) int) (V, error) {
	if v, ok := c.Get(key); ok {
		s.m.hits.Add(1)
		return v, nil
	}
	s.m.misses.Add(1)
	s.m.originReads.Add(1)
	v, err := load()
	if err != nil {
		s.m.originReadErr.Add(1)
		return v, err
	}
	if n := size(v); n > 0 {
		c.Set(key, v, n)
	}
	return v, nil
}

func cacheKey(runID, path string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:           s.m.hits.Load(),
		Misses:         s.m.misses.Load(),
		OriginReads:    s.m.originReads.Load(),
		OriginWrites:   s.m.originWrites.Load(),
		OriginReadErr:  s.m.originReadErr.Load(),
		OriginWriteErr: s.m.originWriteErr.Load(),
	}
}
