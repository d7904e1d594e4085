package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/money"
)

// InstallmentScheduler derives a credit repayment schedule. All amounts are
// rounded to two places and any rounding remainder is absorbed by the last
// installment, so the schedule sums to principal − downPayment exactly.
type InstallmentScheduler struct{}

// Generate builds the schedule. A non-positive principal or a count below 1
// fails with ErrInvalidSchedule. When the down payment already covers the
// principal the schedule is empty.
func (InstallmentScheduler) Generate(principal, downPayment decimal.Decimal, count int, frequencyDays int, start time.Time) (domain.InstallmentPlan, error) {
	if count < 1 || principal.Sign() <= 0 {
		return domain.InstallmentPlan{}, ErrInvalidSchedule
	}

	plan := domain.InstallmentPlan{
		Principal:     principal,
		DownPayment:   downPayment,
		Count:         count,
		FrequencyDays: frequencyDays,
		StartDate:     start,
	}

	remaining := principal.Sub(downPayment)
	if remaining.Sign() <= 0 {
		return plan, nil
	}

	per := money.Round2(remaining.Div(decimal.NewFromInt(int64(count))))
	plan.Installments = make([]domain.Installment, 0, count)

	accumulated := decimal.Zero
	for i := 1; i <= count; i++ {
		amount := per
		if i == count {
			amount = remaining.Sub(accumulated)
		}
		plan.Installments = append(plan.Installments, domain.Installment{
			Sequence:   i,
			DueDate:    start.AddDate(0, 0, i*frequencyDays),
			Amount:     amount,
			PaidAmount: decimal.Zero,
			State:      domain.InstallmentPending,
		})
		accumulated = accumulated.Add(amount)
	}

	return plan, nil
}

// RecordPayment applies a payment to one installment. Paid amounts are
// monotonic: they never decrease, overpayment is rejected, and a paid
// installment cannot be reopened.
func (InstallmentScheduler) RecordPayment(plan *domain.InstallmentPlan, sequence int, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrValidation
	}
	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if inst.Sequence != sequence {
			continue
		}
		if inst.State == domain.InstallmentPaid {
			return ErrValidation
		}
		paid := inst.PaidAmount.Add(amount)
		if paid.Cmp(inst.Amount) > 0 {
			return ErrValidation
		}
		inst.PaidAmount = paid
		if paid.Equal(inst.Amount) {
			inst.State = domain.InstallmentPaid
		} else {
			inst.State = domain.InstallmentPartiallyPaid
		}
		return nil
	}
	return ErrValidation
}
