package engine

import (
	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/money"
)

// CashReconciler computes a drawer's expected closing balance and the
// variance against a physically counted amount. Every method is a pure
// function of its inputs, safe to call on every keystroke while the user
// edits the counted amount.
type CashReconciler struct{}

func (CashReconciler) ExpectedBalance(state domain.CashDrawerState) decimal.Decimal {
	return state.OpeningBalance.
		Add(state.CashSales).
		Add(state.CardSales).
		Add(state.QRSales).
		Add(state.TransferSales).
		Add(state.InstallmentCollections).
		Add(state.Deposits).
		Sub(state.Withdrawals).
		Sub(state.CashPurchases).
		Sub(state.CreditDownPayments)
}

func (r CashReconciler) Variance(state domain.CashDrawerState, counted decimal.Decimal) decimal.Decimal {
	return counted.Sub(r.ExpectedBalance(state))
}

func (CashReconciler) Shortage(variance decimal.Decimal) decimal.Decimal {
	return money.FloorZero(variance.Neg())
}

func (CashReconciler) Overage(variance decimal.Decimal) decimal.Decimal {
	return money.FloorZero(variance)
}
