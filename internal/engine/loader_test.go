package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway/memory"
)

type recordingCache struct {
	entries map[string][]domain.StockEntry
	getErr  error
	gets    int
	sets    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string][]domain.StockEntry)}
}

func (c *recordingCache) Get(_ context.Context, key string) ([]domain.StockEntry, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	entries, ok := c.entries[key]
	return entries, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, entries []domain.StockEntry, _ time.Duration) error {
	c.sets++
	c.entries[key] = entries
	return nil
}

func TestLoadPopulatesAndReusesCache(t *testing.T) {
	store := memory.NewSeeded()
	snapshotCache := newRecordingCache()
	loader := NewSnapshotLoader(store, snapshotCache, time.Minute)
	ctx := context.Background()

	first, err := loader.Load(ctx, 1, false)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if snapshotCache.sets != 1 {
		t.Fatalf("expected one cache set, got %d", snapshotCache.sets)
	}

	// Authoritative stock moves; the cached snapshot must still be served.
	store.SetStock(1, 1, decimal.NewFromInt(5))

	second, err := loader.Load(ctx, 1, false)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected cached snapshot of %d entries, got %d", len(first), len(second))
	}
	for _, entry := range second {
		if entry.ArticleID == 1 && !entry.Available.Equal(decimal.NewFromInt(120)) {
			t.Fatalf("expected cached availability 120, got %s", entry.Available)
		}
	}
}

func TestLoadForceBypassesAndRefreshesCache(t *testing.T) {
	store := memory.NewSeeded()
	snapshotCache := newRecordingCache()
	loader := NewSnapshotLoader(store, snapshotCache, time.Minute)
	ctx := context.Background()

	if _, err := loader.Load(ctx, 1, false); err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	store.SetStock(1, 1, decimal.NewFromInt(7))

	entries, err := loader.Load(ctx, 1, true)
	if err != nil {
		t.Fatalf("forced load failed: %v", err)
	}
	for _, entry := range entries {
		if entry.ArticleID == 1 && !entry.Available.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("forced load must see authoritative stock, got %s", entry.Available)
		}
	}
	if snapshotCache.sets != 2 {
		t.Fatalf("forced load must refresh the cache, got %d sets", snapshotCache.sets)
	}
}

func TestLoadDegradesWhenCacheFails(t *testing.T) {
	store := memory.NewSeeded()
	snapshotCache := newRecordingCache()
	snapshotCache.getErr = errors.New("connection refused")
	loader := NewSnapshotLoader(store, snapshotCache, time.Minute)

	entries, err := loader.Load(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("load must survive a cache failure, got %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected entries from the stock service")
	}
}
