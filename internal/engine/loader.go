package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aGuizada/inventarios-engine/internal/cache"
	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
)

// SnapshotLoader fetches warehouse snapshots through the stock service,
// consulting an optional cache first. Each session owns its loader; the
// cache behind it may be shared, the loader never holds mutable state.
type SnapshotLoader struct {
	stock gateway.StockService
	cache cache.SnapshotCache
	ttl   time.Duration
}

func NewSnapshotLoader(stock gateway.StockService, snapshotCache cache.SnapshotCache, ttl time.Duration) *SnapshotLoader {
	if snapshotCache == nil {
		snapshotCache = cache.NoopSnapshotCache{}
	}
	return &SnapshotLoader{stock: stock, cache: snapshotCache, ttl: ttl}
}

// Load returns the snapshot for a warehouse. With force set the cache is
// bypassed and refreshed, which is mandatory after a commit-side
// concurrency conflict. Cache failures degrade to a direct fetch.
func (l *SnapshotLoader) Load(ctx context.Context, warehouseID int64, force bool) ([]domain.StockEntry, error) {
	key := snapshotKey(warehouseID)

	if !force {
		entries, hit, err := l.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[snapshot-loader] WARN: cache get failed for %s: %v", key, err)
		} else if hit {
			return entries, nil
		}
	}

	entries, err := l.stock.WarehouseSnapshot(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(ctx, key, entries, l.ttl); err != nil {
		log.Printf("[snapshot-loader] WARN: cache set failed for %s: %v", key, err)
	}
	return entries, nil
}

func snapshotKey(warehouseID int64) string {
	return fmt.Sprintf("snapshot:almacen:%d", warehouseID)
}
