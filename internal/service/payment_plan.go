package service

import (
	"context"
	"fmt"
	"time"

	"collections-engine/internal/domain"
)

// RecordPayment is the only path that mutates paymentsMade/totalPaid. The
// next due date advances from the current one, not from now, so a late
// payment does not shift the schedule. Overpaying past the plan total is
// allowed and left to reporting to surface.
func (e *Engine) RecordPayment(ctx context.Context, taskID string, amount float64, actor string) (*domain.Task, error) {
	if amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "payment amount must be positive"}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.PaymentPlan == nil {
		return nil, &domain.StateError{Message: "No payment plan found for this task"}
	}

	plan := t.PaymentPlan
	plan.PaymentsMade++
	plan.TotalPaid += amount
	plan.NextPaymentDate = advanceByInstallment(plan.NextPaymentDate, plan.InstallmentFrequency)

	e.audit(t, "payment_recorded",
		fmt.Sprintf("installment %d of %d received", plan.PaymentsMade, plan.NumberOfInstallments),
		actor,
		fmt.Sprintf("%g", plan.TotalPaid-amount),
		fmt.Sprintf("%g", plan.TotalPaid),
	)
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// advanceByInstallment moves a due date forward one billing period. Calendar
// arithmetic keeps the day of month, clipped to the target month's length.
func advanceByInstallment(from time.Time, freq domain.InstallmentFrequency) time.Time {
	switch freq {
	case domain.InstallmentWeekly:
		return from.AddDate(0, 0, 7)
	case domain.InstallmentBiWeekly:
		return from.AddDate(0, 0, 14)
	case domain.InstallmentMonthly:
		return addMonthsClipped(from, 1)
	case domain.InstallmentQuarterly:
		return addMonthsClipped(from, 3)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// addMonthsClipped adds calendar months without the AddDate overflow (Jan 31
// + 1 month must be Feb 28/29, not Mar 2/3).
func addMonthsClipped(from time.Time, months int) time.Time {
	year, month, day := from.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, from.Location())
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	h, m, s := from.Clock()
	return time.Date(target.Year(), target.Month(), day, h, m, s, from.Nanosecond(), from.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
