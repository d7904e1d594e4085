package engine

import (
	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/money"
)

// PaymentAllocator splits a transaction total across an ordered list of
// tenders. Tenders are append/remove only; two tenders for the same payment
// type are never coalesced, duplicates are an explicit user choice.
type PaymentAllocator struct {
	tenders       []domain.Tender
	primaryTypeID int64
}

func NewPaymentAllocator() *PaymentAllocator {
	return &PaymentAllocator{}
}

func (a *PaymentAllocator) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range a.tenders {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// RemainingBalance is total − sum(tenders), floored at zero.
func (a *PaymentAllocator) RemainingBalance(total decimal.Decimal) decimal.Decimal {
	return money.FloorZero(total.Sub(a.Sum()))
}

// AddTender appends a tender. A nil amount defaults to the remaining
// balance. Amounts above the remaining balance at insertion time fail with
// ErrExceedsTotal; zero and negative amounts are invalid.
func (a *PaymentAllocator) AddTender(typeID int64, class domain.PaymentClass, amount *decimal.Decimal, reference string, total decimal.Decimal) (domain.Tender, error) {
	remaining := a.RemainingBalance(total)

	var amt decimal.Decimal
	if amount == nil {
		amt = remaining
	} else {
		amt = money.Round2(*amount)
	}
	if amt.Sign() <= 0 {
		return domain.Tender{}, ErrValidation
	}
	if amt.Cmp(remaining) > 0 {
		return domain.Tender{}, ErrExceedsTotal
	}

	tender := domain.Tender{
		PaymentTypeID: typeID,
		Class:         class,
		Amount:        amt,
		Reference:     reference,
	}
	a.tenders = append(a.tenders, tender)
	if a.primaryTypeID == 0 {
		a.primaryTypeID = typeID
	}
	return tender, nil
}

// RemoveTender drops the tender at index. Out-of-range indexes are ignored.
// When the last tender goes, the primary payment method field is cleared.
func (a *PaymentAllocator) RemoveTender(index int) {
	if index < 0 || index >= len(a.tenders) {
		return
	}
	a.tenders = append(a.tenders[:index], a.tenders[index+1:]...)
	if len(a.tenders) == 0 {
		a.primaryTypeID = 0
	}
}

// IsComplete reports whether the tenders cover the total within one minor
// currency unit.
func (a *PaymentAllocator) IsComplete(total decimal.Decimal) bool {
	return money.WithinTolerance(a.Sum(), total)
}

func (a *PaymentAllocator) PrimaryTypeID() int64 {
	return a.primaryTypeID
}

func (a *PaymentAllocator) Tenders() []domain.Tender {
	out := make([]domain.Tender, len(a.tenders))
	copy(out, a.tenders)
	return out
}
