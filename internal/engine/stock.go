package engine

import (
	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// StockProjector keeps an advisory copy of available stock per article for
// one warehouse. It exists only to stop obviously invalid carts before
// commit; the commit service remains the authority, so a successful reserve
// here does not guarantee commit success.
type StockProjector struct {
	warehouseID int64
	available   map[int64]decimal.Decimal
	loaded      map[int64]decimal.Decimal
	factors     map[int64]int
}

func NewStockProjector() *StockProjector {
	return &StockProjector{
		available: make(map[int64]decimal.Decimal),
		loaded:    make(map[int64]decimal.Decimal),
		factors:   make(map[int64]int),
	}
}

// LoadSnapshot replaces the projector state wholesale. Any in-flight
// reservations are discarded; the caller must re-add its cart lines.
// Packaging factors are captured here so later conversions use the catalog
// state that matches the snapshot.
func (p *StockProjector) LoadSnapshot(warehouseID int64, entries []domain.StockEntry, factors map[int64]int) {
	p.warehouseID = warehouseID
	p.available = make(map[int64]decimal.Decimal, len(entries))
	p.loaded = make(map[int64]decimal.Decimal, len(entries))
	p.factors = make(map[int64]int, len(factors))

	for _, entry := range entries {
		p.available[entry.ArticleID] = entry.Available
		p.loaded[entry.ArticleID] = entry.Available
	}
	for id, factor := range factors {
		if factor < 1 {
			factor = 1
		}
		p.factors[id] = factor
	}
}

func (p *StockProjector) WarehouseID() int64 {
	return p.warehouseID
}

// Available returns the currently reservable amount in base units.
func (p *StockProjector) Available(articleID int64) decimal.Decimal {
	return p.available[articleID]
}

// BaseUnits converts a quantity in the given unit of measure to base units
// using the packaging factor captured at snapshot load.
func (p *StockProjector) BaseUnits(articleID int64, quantity decimal.Decimal, unit domain.UnitOfMeasure) (decimal.Decimal, error) {
	switch unit {
	case domain.UnitBase:
		return quantity, nil
	case domain.UnitPackage:
		factor := p.factors[articleID]
		if factor < 1 {
			factor = 1
		}
		return quantity.Mul(decimal.NewFromInt(int64(factor))), nil
	case domain.UnitFraction:
		return quantity.Div(hundred), nil
	default:
		return decimal.Zero, ErrValidation
	}
}

// Reserve decrements the advisory availability. On failure nothing is
// mutated and the caller receives the amount still available.
func (p *StockProjector) Reserve(articleID int64, quantity decimal.Decimal, unit domain.UnitOfMeasure) (decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return decimal.Zero, ErrValidation
	}
	base, err := p.BaseUnits(articleID, quantity, unit)
	if err != nil {
		return decimal.Zero, err
	}

	current := p.available[articleID]
	if base.Cmp(current) > 0 {
		return decimal.Zero, &InsufficientStockError{ArticleID: articleID, Available: current}
	}

	remaining := current.Sub(base)
	p.available[articleID] = remaining
	return remaining, nil
}

// Release is the inverse of Reserve. It always succeeds and clamps the
// restored amount to the originally loaded snapshot, so a double release
// cannot mint stock.
func (p *StockProjector) Release(articleID int64, quantity decimal.Decimal, unit domain.UnitOfMeasure) decimal.Decimal {
	if quantity.Sign() <= 0 {
		return p.available[articleID]
	}
	base, err := p.BaseUnits(articleID, quantity, unit)
	if err != nil {
		return p.available[articleID]
	}

	restored := p.available[articleID].Add(base)
	if ceiling := p.loaded[articleID]; restored.Cmp(ceiling) > 0 {
		restored = ceiling
	}
	p.available[articleID] = restored
	return restored
}
