package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrExceedsTotal    = errors.New("tender exceeds remaining balance")
	ErrInvalidSchedule = errors.New("invalid schedule parameters")

	// ErrSnapshotStale blocks reservations after a commit-side concurrency
	// conflict until the warehouse snapshot is reloaded.
	ErrSnapshotStale = errors.New("stock snapshot is stale, reload required")
)

// InsufficientStockError reports a reservation that exceeded the local
// snapshot. Available is the amount still reservable, in base units.
type InsufficientStockError struct {
	ArticleID int64
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for article %d: %s available", e.ArticleID, e.Available.String())
}
