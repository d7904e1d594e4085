package cache

import (
	"context"
	"time"

	"github.com/aGuizada/inventarios-engine/internal/domain"
)

// SnapshotCache holds warehouse stock snapshots so that re-opening a
// session on the same warehouse within the TTL does not hit the stock
// service again. A forced reload always bypasses it.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]domain.StockEntry, bool, error)
	Set(ctx context.Context, key string, entries []domain.StockEntry, ttl time.Duration) error
}

type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Get(_ context.Context, _ string) ([]domain.StockEntry, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) Set(_ context.Context, _ string, _ []domain.StockEntry, _ time.Duration) error {
	return nil
}
