// Package gateway declares the narrow interfaces through which the engine
// consumes its external collaborators. The engine never talks to a network
// or a database directly; everything arrives through these.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aGuizada/inventarios-engine/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict means the commit service rejected the payload
	// because authoritative stock changed since the snapshot was taken.
	// Local reservations are no longer trustworthy after this.
	ErrConcurrencyConflict = errors.New("stock changed since snapshot")
)

// NetworkError wraps a transport failure. The transaction was not applied
// and the same payload is safe to retry unchanged.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CatalogService supplies read-only reference data. Payment and sale types
// carry their enumerated classification; the engine never infers semantics
// from display names.
type CatalogService interface {
	ListArticles(ctx context.Context) ([]domain.CatalogArticle, error)
	ListPaymentTypes(ctx context.Context) ([]domain.PaymentType, error)
	ListSaleTypes(ctx context.Context) ([]domain.SaleType, error)
}

// StockService supplies the per-warehouse availability snapshot, keyed by
// article, in base units.
type StockService interface {
	WarehouseSnapshot(ctx context.Context, warehouseID int64) ([]domain.StockEntry, error)
}

// CommitService is the sole authority on whether a transaction is durably
// applied. It returns the created transaction identifier or a typed error
// (ErrConcurrencyConflict, *NetworkError).
type CommitService interface {
	CommitSale(ctx context.Context, payload domain.SalePayload) (string, error)
	CommitPurchase(ctx context.Context, payload domain.PurchasePayload) (string, error)
}

// CashRegisterService reports the aggregated totals of an open drawer.
type CashRegisterService interface {
	DrawerState(ctx context.Context, drawerID int64) (domain.CashDrawerState, error)
}
