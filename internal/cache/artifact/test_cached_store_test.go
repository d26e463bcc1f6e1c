package artifact

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	artifactrepo "roadplan/internal/repository/artifact"
)

type countingOrigin struct {
	*artifactrepo.MemoryStore

	mu        sync.Mutex
	getCalls  int
	listCalls int
	urlCalls  int
	failPut   bool
	url       string
}

func newCountingOrigin() *countingOrigin {
	return &countingOrigin{MemoryStore: artifactrepo.NewMemoryStore()}
}

func (o *countingOrigin) Put(ctx context.Context, runID, path string, content []byte) error {
	if o.failPut {
		return fmt.Errorf("put failed")
	}
	return o.MemoryStore.Put(ctx, runID, path, content)
}

func (o *countingOrigin) Get(ctx context.Context, runID, path string) ([]byte, error) {
	o.mu.Lock()
	o.getCalls++
	o.mu.Unlock()
	return o.MemoryStore.Get(ctx, runID, path)
}

func (o *countingOrigin) List(ctx context.Context, runID string) ([]string, error) {
	o.mu.Lock()
	o.listCalls++
	o.mu.Unlock()
	return o.MemoryStore.List(ctx, runID)
}

func (o *countingOrigin) GetURL(context.Context, string, string) (string, error) {
	o.mu.Lock()
	o.urlCalls++
	o.mu.Unlock()
	return o.url, nil
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	_ = origin.MemoryStore.Put(ctx, "r1", "day-0.json", []byte(`{"passes":1}`))
	store := NewCachedStore(origin, CacheConfig{BlobTTL: time.Minute, BlobMaxEntries: 8, BlobMaxBytes: 1024})

	for i := 0; i < 2; i++ {
		got, err := store.Get(ctx, "r1", "day-0.json")
		if err != nil {
			t.Fatalf("get %d failed: %v", i, err)
		}
		if string(got) != `{"passes":1}` {
			t.Fatalf("unexpected content: %q", got)
		}
	}
	if origin.getCalls != 1 {
		t.Fatalf("expected one origin get, got %d", origin.getCalls)
	}
	m := store.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.OriginReads != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestCachedStoreWriteThroughInvalidatesList(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())

	if err := store.Put(ctx, "r1", "day-0.json", []byte("a")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	l1, _ := store.List(ctx, "r1")
	if err := store.Put(ctx, "r1", "day-1.json", []byte("b")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	l2, _ := store.List(ctx, "r1")
	if !reflect.DeepEqual(l1, []string{"day-0.json"}) || !reflect.DeepEqual(l2, []string{"day-0.json", "day-1.json"}) {
		t.Fatalf("stale listing: %v then %v", l1, l2)
	}
	if origin.listCalls != 2 {
		t.Fatalf("expected list to hit origin after write, got %d calls", origin.listCalls)
	}

	origin.failPut = true
	if err := store.Put(ctx, "r1", "day-2.json", []byte("bad")); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := store.Get(ctx, "r1", "day-2.json"); err == nil {
		t.Fatalf("failed write must not be cached")
	}
	if got := store.Metrics().OriginWriteErr; got != 1 {
		t.Fatalf("expected one write error, got %d", got)
	}
}

func TestCachedStoreEvictionAndTTL(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	_ = origin.MemoryStore.Put(ctx, "r1", "a", []byte("A"))
	_ = origin.MemoryStore.Put(ctx, "r1", "b", []byte("B"))

	store := NewCachedStore(origin, CacheConfig{BlobTTL: time.Minute, BlobMaxEntries: 1})
	for _, p := range []string{"a", "b", "a"} {
		if _, err := store.Get(ctx, "r1", p); err != nil {
			t.Fatalf("get %s failed: %v", p, err)
		}
	}
	if origin.getCalls != 3 {
		t.Fatalf("expected 3 origin reads with one-entry cache, got %d", origin.getCalls)
	}

	origin.getCalls = 0
	short := NewCachedStore(origin, CacheConfig{BlobTTL: 10 * time.Millisecond, BlobMaxEntries: 8})
	_, _ = short.Get(ctx, "r1", "a")
	time.Sleep(30 * time.Millisecond)
	_, _ = short.Get(ctx, "r1", "a")
	if origin.getCalls != 2 {
		t.Fatalf("expected 2 origin reads after ttl expiry, got %d", origin.getCalls)
	}
}

func TestCachedStoreSkipsEmptyURL(t *testing.T) {
	ctx := context.Background()
	origin := newCountingOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())

	_, _ = store.GetURL(ctx, "r1", "a")
	_, _ = store.GetURL(ctx, "r1", "a")
	if origin.urlCalls != 2 {
		t.Fatalf("empty url should not be cached, got %d origin calls", origin.urlCalls)
	}

	origin.url = "https://bucket/r1/a"
	_, _ = store.GetURL(ctx, "r1", "b")
	u, _ := store.GetURL(ctx, "r1", "b")
	if u != origin.url || origin.urlCalls != 3 {
		t.Fatalf("expected cached url, got %q after %d calls", u, origin.urlCalls)
	}
}
