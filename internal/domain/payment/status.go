package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// ===============================
// Intent Status
// ===============================

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
	IntentCancelled IntentStatus = "cancelled"
	IntentExpired   IntentStatus = "expired"
)

// Every successor of Pending is terminal.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentCompleted, IntentFailed, IntentCancelled, IntentExpired:
		return true
	}
	return false
}

var (
	ErrIntentTerminal = errors.New("payment intent already terminal")
	ErrNothingToPay   = errors.New("nothing to pay")
	ErrRefundTooLarge = errors.New("refund exceeds refundable amount")
)

// Resolve moves a Pending intent to a terminal status. Repeating the
// current terminal status is a no-op and returns changed=false.
func Resolve(pi *models.PaymentIntent, to IntentStatus, now time.Time) (bool, error) {
	if !to.IsTerminal() {
		return false, httperr.ErrBusinessf("invalid_state", "intent cannot move to %s", to)
	}

	current := IntentStatus(pi.Status)
	if current == to {
		return false, nil
	}
	if current.IsTerminal() {
		return false, httperr.Wrap(
			ErrIntentTerminal,
			"intent_already_terminal",
			"intent %s is %s and cannot become %s", pi.Code, current, to,
		)
	}

	pi.Status = string(to)
	switch to {
	case IntentCompleted:
		pi.CompletedAt = &now
	case IntentFailed:
		pi.FailedAt = &now
	case IntentCancelled:
		pi.CancelledAt = &now
	case IntentExpired:
		pi.ExpiredAt = &now
	}
	return true, nil
}

// ClampCapture rounds to cents and keeps the capture within [0, amount].
func ClampCapture(amount, captured decimal.Decimal) decimal.Decimal {
	captured = captured.Round(2)
	if captured.IsNegative() {
		return decimal.Zero
	}
	if captured.GreaterThan(amount) {
		return amount
	}
	return captured
}

func Complete(pi *models.PaymentIntent, captured decimal.Decimal, gatewayTxID string, now time.Time) (bool, error) {
	clamped := ClampCapture(pi.Amount, captured)
	changed, err := Resolve(pi, IntentCompleted, now)
	if err != nil || !changed {
		return changed, err
	}
	pi.CapturedAmount = clamped
	if gatewayTxID != "" {
		pi.GatewayTxID = gatewayTxID
	}
	return true, nil
}

func Fail(pi *models.PaymentIntent, reason string, now time.Time) (bool, error) {
	changed, err := Resolve(pi, IntentFailed, now)
	if changed {
		pi.FailureReason = reason
	}
	return changed, err
}

func Cancel(pi *models.PaymentIntent, reason string, now time.Time) (bool, error) {
	changed, err := Resolve(pi, IntentCancelled, now)
	if changed {
		pi.FailureReason = reason
	}
	return changed, err
}

func Expire(pi *models.PaymentIntent, now time.Time) (bool, error) {
	return Resolve(pi, IntentExpired, now)
}

// Refundable is what is left of the capture after refunds.
func Refundable(pi *models.PaymentIntent) decimal.Decimal {
	if IntentStatus(pi.Status) != IntentCompleted {
		return decimal.Zero
	}
	left := pi.CapturedAmount.Sub(pi.RefundedAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// ===============================
// Refund Status
// ===============================

type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
	RefundCancelled  RefundStatus = "cancelled"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:    {RefundProcessing, RefundCancelled},
	RefundProcessing: {RefundCompleted, RefundFailed},
	RefundFailed:     {RefundProcessing, RefundCancelled},
}

// IsOpen reports refunds that still reserve part of the capture.
func (s RefundStatus) IsOpen() bool {
	return s == RefundPending || s == RefundProcessing || s == RefundFailed
}

func MoveRefund(r *models.Refund, to RefundStatus, now time.Time) error {
	from := RefundStatus(r.Status)
	for _, s := range refundTransitions[from] {
		if s == to {
			r.Status = string(to)
			if to == RefundCompleted || to == RefundCancelled {
				r.ProcessedAt = &now
			}
			return nil
		}
	}
	return httperr.ErrBusinessf("invalid_state", "refund %d cannot move from %s to %s", r.ID, from, to)
}
