package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
)

func TestAddTenderDefaultsToRemainingBalance(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.NewFromInt(500)

	tender, err := a.AddTender(1, domain.PaymentCash, nil, "", total)
	if err != nil {
		t.Fatalf("add cash tender failed: %v", err)
	}
	if !tender.Amount.Equal(total) {
		t.Fatalf("expected default amount 500, got %s", tender.Amount)
	}
	if !a.IsComplete(total) {
		t.Fatalf("expected allocation to be complete")
	}

	overshoot := decimal.NewFromInt(600)
	if _, err := a.AddTender(2, domain.PaymentCard, &overshoot, "CARD-01", total); !errors.Is(err, ErrExceedsTotal) {
		t.Fatalf("expected ErrExceedsTotal, got %v", err)
	}

	a.RemoveTender(0)
	tender, err = a.AddTender(2, domain.PaymentCard, nil, "CARD-01", total)
	if err != nil {
		t.Fatalf("add card tender after removal failed: %v", err)
	}
	if !tender.Amount.Equal(total) {
		t.Fatalf("expected card tender to default to 500, got %s", tender.Amount)
	}
}

func TestRemainingBalanceFlooredAtZero(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.NewFromInt(100)

	if _, err := a.AddTender(1, domain.PaymentCash, nil, "", total); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}
	if !a.RemainingBalance(total).IsZero() {
		t.Fatalf("expected zero remaining, got %s", a.RemainingBalance(total))
	}
	if !a.RemainingBalance(decimal.NewFromInt(50)).IsZero() {
		t.Fatalf("remaining must floor at zero when total shrinks below tenders")
	}
}

func TestDuplicateMethodsAreNotCoalesced(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.NewFromInt(300)
	first := decimal.NewFromInt(100)
	second := decimal.NewFromInt(200)

	if _, err := a.AddTender(1, domain.PaymentCash, &first, "", total); err != nil {
		t.Fatalf("first cash tender failed: %v", err)
	}
	if _, err := a.AddTender(1, domain.PaymentCash, &second, "", total); err != nil {
		t.Fatalf("second cash tender failed: %v", err)
	}

	if len(a.Tenders()) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(a.Tenders()))
	}
	if !a.IsComplete(total) {
		t.Fatalf("expected allocation to be complete")
	}
}

func TestRemoveLastTenderClearsPrimaryMethod(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.NewFromInt(80)

	if _, err := a.AddTender(4, domain.PaymentQR, nil, "QR-REF", total); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}
	if a.PrimaryTypeID() != 4 {
		t.Fatalf("expected primary method 4, got %d", a.PrimaryTypeID())
	}

	a.RemoveTender(0)
	if a.PrimaryTypeID() != 0 {
		t.Fatalf("expected primary method cleared, got %d", a.PrimaryTypeID())
	}

	// Out-of-range removals are no-ops.
	a.RemoveTender(3)
	a.RemoveTender(-1)
}

func TestAddTenderRejectsNonPositiveAmounts(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.NewFromInt(50)

	zero := decimal.Zero
	if _, err := a.AddTender(1, domain.PaymentCash, &zero, "", total); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero tender, got %v", err)
	}
	negative := decimal.NewFromInt(-10)
	if _, err := a.AddTender(1, domain.PaymentCash, &negative, "", total); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for negative tender, got %v", err)
	}
}

func TestIsCompleteWithinOneMinorUnit(t *testing.T) {
	a := NewPaymentAllocator()
	total := decimal.RequireFromString("99.99")
	amount := decimal.RequireFromString("99.98")

	if _, err := a.AddTender(1, domain.PaymentCash, &amount, "", total); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}
	if !a.IsComplete(total) {
		t.Fatalf("expected completion within one minor unit of tolerance")
	}
	if a.IsComplete(decimal.RequireFromString("100.01")) {
		t.Fatalf("expected incompleteness beyond tolerance")
	}
}
