package appointment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// AutoCancelPrefix marks cancellations made by the reconciliation sweep.
const AutoCancelPrefix = "AUTO_CANCEL"

// ===============================
// Domain Actions
// ===============================

// Transition moves ap to status `to` and stamps the matching timestamp.
func Transition(ap *models.Appointment, to Status, actor Actor, now time.Time) error {
	if err := CanTransition(Status(ap.Status), to, actor); err != nil {
		return err
	}

	ap.Status = int(to)
	ap.UpdatedBy = actor.ID

	switch to {
	case StatusConfirmed:
		ap.ConfirmedAt = &now
	case StatusCheckedIn:
		ap.CheckedInAt = &now
	case StatusInProgress:
		ap.StartedAt = &now
	case StatusCompleted, StatusCompletedWithUnpaidBalance:
		if ap.CompletedAt == nil {
			ap.CompletedAt = &now
		}
	case StatusCancelled:
		ap.CancelledAt = &now
		ap.CancelledBy = actor.ID
	case StatusNoShow:
		ap.NoShowAt = &now
	}
	return nil
}

func Cancel(ap *models.Appointment, actor Actor, reason string, now time.Time) error {
	if err := Transition(ap, StatusCancelled, actor, now); err != nil {
		return err
	}
	ap.CancellationReason = reason
	return nil
}

// MarkNoShow requires the slot start plus grace to have passed.
func MarkNoShow(ap *models.Appointment, slotStart time.Time, grace time.Duration, actor Actor, now time.Time) error {
	if now.Before(slotStart.Add(grace)) {
		return httperr.ErrBusinessf(
			"grace_period_not_elapsed",
			"no-show can be marked after %s", slotStart.Add(grace).Format(time.RFC3339),
		)
	}
	return Transition(ap, StatusNoShow, actor, now)
}

// EnsureEditable guards Update and Reschedule.
func EnsureEditable(ap *models.Appointment) error {
	s := Status(ap.Status)
	if s != StatusPending && s != StatusConfirmed {
		return httperr.ErrBusinessf("invalid_state", "appointment is %s; only Pending or Confirmed can change", s)
	}
	return nil
}

func EnsureDeletable(ap *models.Appointment) error {
	if Status(ap.Status) != StatusPending {
		return httperr.ErrBusinessf("invalid_state", "only Pending appointments can be deleted; this one is %s", Status(ap.Status))
	}
	return nil
}

// ===============================
// Payment
// ===============================

// AmountDue is the final cost once known, otherwise the estimate.
func AmountDue(ap *models.Appointment) decimal.Decimal {
	if ap.FinalCost.Valid {
		return ap.FinalCost.Decimal
	}
	return ap.EstimatedCost
}

func PaymentStatusFor(due, paid decimal.Decimal) PaymentStatus {
	switch {
	case due.IsZero() && paid.IsZero():
		return PaymentNotRequired
	case paid.GreaterThanOrEqual(due):
		return PaymentCompleted
	default:
		return PaymentPending
	}
}

// ApplyPayment records the authoritative paid amount and derives the
// payment status from it. A completed-with-balance appointment whose
// balance is now covered moves to Completed. Reports whether anything changed.
func ApplyPayment(ap *models.Appointment, paid decimal.Decimal, now time.Time) bool {
	paid = paid.Round(2)
	status := PaymentStatusFor(AmountDue(ap), paid)

	changed := !ap.PaidAmount.Equal(paid) || ap.PaymentStatus != string(status)
	ap.PaidAmount = paid
	ap.PaymentStatus = string(status)

	if Status(ap.Status) == StatusCompletedWithUnpaidBalance && status == PaymentCompleted {
		if err := Transition(ap, StatusCompleted, System(), now); err == nil {
			changed = true
		}
	}
	return changed
}

// Settle closes an in-progress appointment against its final cost.
func Settle(ap *models.Appointment, finalCost, paid decimal.Decimal, now time.Time) error {
	ap.FinalCost = decimal.NewNullDecimal(finalCost.Round(2))
	ApplyPayment(ap, paid, now)

	target := StatusCompleted
	if paid.LessThan(finalCost) {
		target = StatusCompletedWithUnpaidBalance
	}
	return Transition(ap, target, System(), now)
}

// Overpaid returns how much was paid beyond the final cost, or zero.
func Overpaid(ap *models.Appointment) decimal.Decimal {
	if !ap.FinalCost.Valid {
		return decimal.Zero
	}
	diff := ap.PaidAmount.Sub(ap.FinalCost.Decimal)
	if diff.IsPositive() {
		return diff
	}
	return decimal.Zero
}
