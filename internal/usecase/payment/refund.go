package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

// ======================================================
// REQUEST
// ======================================================

type RequestRefundInput struct {
	IntentID       uint
	AppointmentID  *uint
	Amount         decimal.Decimal
	IdempotencyKey string
	Reason         string
	UserID         *uint
}

type RequestRefund struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewRequestRefund(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *RequestRefund {
	return &RequestRefund{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute opens a Pending refund. The same key always returns the same
// refund; the amount is bounded by what the intent still holds once
// other open refunds are accounted for.
func (uc *RequestRefund) Execute(
	ctx context.Context,
	in RequestRefundInput,
) (*models.Refund, error) {

	if in.IdempotencyKey == "" {
		return nil, httperr.ErrBusiness("idempotency_key_required")
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, httperr.ErrBusiness("invalid_amount")
	}

	now := uc.clock.Now()
	var (
		rf      *models.Refund
		created bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if rf, err = tx.FindRefundByKey(ctx, in.IdempotencyKey); err != nil || rf != nil {
			return err
		}

		pi, err := tx.LockIntent(ctx, in.IntentID)
		if err != nil {
			return err
		}
		available, err := available(ctx, tx, pi)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return httperr.Wrap(
				domain.ErrRefundTooLarge,
				"refund_too_large",
				"refund %s exceeds refundable %s on %s", amount.StringFixed(2), available.StringFixed(2), pi.Code,
			)
		}

		apID := in.AppointmentID
		if apID == nil {
			apID = pi.AppointmentID
		}
		rf = &models.Refund{
			AppointmentID:   apID,
			PaymentIntentID: pi.ID,
			Amount:          amount,
			Status:          string(domain.RefundPending),
			Reason:          truncate(in.Reason, 255),
			IdempotencyKey:  in.IdempotencyKey,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		created = true
		return tx.CreateRefund(ctx, rf)
	})
	if err != nil {
		if httperr.IsUniqueViolation(err) {
			return uc.repo.FindRefundByKey(ctx, in.IdempotencyKey)
		}
		return nil, err
	}

	if created {
		uc.audit.Dispatch(audit.Event{
			UserID:   in.UserID,
			Action:   "refund_requested",
			Entity:   "refund",
			EntityID: &rf.ID,
			Metadata: map[string]any{
				"intent_id": rf.PaymentIntentID,
				"amount":    rf.Amount.StringFixed(2),
				"key":       rf.IdempotencyKey,
			},
		})
	}
	return rf, nil
}

// available is the capture minus completed refunds minus refunds in flight.
func available(ctx context.Context, tx domain.Repository, pi *models.PaymentIntent) (decimal.Decimal, error) {
	open, err := tx.ListOpenRefunds(ctx, pi.ID)
	if err != nil {
		return decimal.Zero, err
	}
	left := domain.Refundable(pi)
	for _, r := range open {
		left = left.Sub(r.Amount)
	}
	if left.IsNegative() {
		return decimal.Zero, nil
	}
	return left, nil
}

// ======================================================
// APPOINTMENT
// ======================================================

// AppointmentRefunder spreads a refund over an appointment's completed
// intents, newest first, one refund per intent.
type AppointmentRefunder struct {
	repo    domain.Repository
	request *RequestRefund
	process *ProcessRefund
}

func NewAppointmentRefunder(
	repo domain.Repository,
	request *RequestRefund,
	process *ProcessRefund,
) *AppointmentRefunder {
	return &AppointmentRefunder{
		repo:    repo,
		request: request,
		process: process,
	}
}

// RefundAppointment opens refunds keyed "<prefix>:<appointment>:<intent>"
// and, when a processor is wired, dispatches them right away. Dispatch
// failures are left for the reconciliation sweep.
func (uc *AppointmentRefunder) RefundAppointment(
	ctx context.Context,
	appointmentID uint,
	amount decimal.Decimal,
	keyPrefix string,
	reason string,
) (int, error) {

	intents, err := uc.repo.ListCompletedIntents(ctx, appointmentID)
	if err != nil {
		return 0, err
	}

	remaining := amount.Round(2)
	opened := 0
	for i := len(intents) - 1; i >= 0 && remaining.IsPositive(); i-- {
		pi := intents[i]
		key := fmt.Sprintf("%s:%d:%d", keyPrefix, appointmentID, pi.ID)

		existing, err := uc.repo.FindRefundByKey(ctx, key)
		if err != nil {
			return opened, err
		}
		if existing != nil {
			remaining = remaining.Sub(existing.Amount)
			continue
		}

		avail, err := available(ctx, uc.repo, &pi)
		if err != nil {
			return opened, err
		}
		take := decimal.Min(remaining, avail)
		if !take.IsPositive() {
			continue
		}

		rf, err := uc.request.Execute(ctx, RequestRefundInput{
			IntentID:       pi.ID,
			AppointmentID:  &appointmentID,
			Amount:         take,
			IdempotencyKey: key,
			Reason:         reason,
		})
		if err != nil {
			if httperr.IsBusiness(err, "refund_too_large") {
				log.Printf("[payment] refund %s skipped: %v", key, err)
				continue
			}
			return opened, err
		}
		remaining = remaining.Sub(rf.Amount)
		opened++

		if uc.process != nil {
			if err := uc.process.Execute(ctx, rf.ID); err != nil {
				log.Printf("[payment] dispatch refund %s: %v", key, err)
			}
		}
	}
	return opened, nil
}

// ======================================================
// PROCESS
// ======================================================

type ProcessRefund struct {
	repo     domain.Repository
	audit    *audit.Dispatcher
	clock    timezone.Clock
	pub      events.Publisher
	gateways domain.Registry
}

func NewProcessRefund(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	gateways domain.Registry,
) *ProcessRefund {
	return &ProcessRefund{
		repo:     repo,
		audit:    audit,
		clock:    clock,
		pub:      pub,
		gateways: gateways,
	}
}

// Execute claims the refund (Processing), calls the gateway with no
// transaction open, then records the outcome. A refund someone else
// already claimed is skipped.
func (uc *ProcessRefund) Execute(ctx context.Context, refundID uint) error {
	return uc.process(ctx, refundID, time.Time{})
}

// Reclaim is Execute for a refund left in Processing by a dispatcher that
// never recorded the outcome. The claim is taken over only when it was
// last touched before claimedBefore; the gateway dedupes on the refund key.
func (uc *ProcessRefund) Reclaim(ctx context.Context, refundID uint, claimedBefore time.Time) error {
	return uc.process(ctx, refundID, claimedBefore)
}

func (uc *ProcessRefund) process(ctx context.Context, refundID uint, claimedBefore time.Time) error {
	var (
		rf      *models.Refund
		pi      *models.PaymentIntent
		claimed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if rf, err = tx.LockRefund(ctx, refundID); err != nil {
			return err
		}
		now := uc.clock.Now()
		switch domain.RefundStatus(rf.Status) {
		case domain.RefundPending, domain.RefundFailed:
			if err := domain.MoveRefund(rf, domain.RefundProcessing, now); err != nil {
				return err
			}
		case domain.RefundProcessing:
			if claimedBefore.IsZero() || !rf.UpdatedAt.Before(claimedBefore) {
				return nil
			}
		default:
			return nil
		}
		if pi, err = tx.GetIntent(ctx, rf.PaymentIntentID); err != nil {
			return err
		}
		rf.UpdatedAt = now
		claimed = true
		return tx.UpdateRefund(ctx, rf)
	})
	if err != nil || !claimed {
		return err
	}

	gw, gwErr := uc.gateways.Get(pi.Provider)
	var ref string
	if gwErr == nil {
		ref, gwErr = gw.Refund(ctx, domain.RefundRequest{
			RefundKey:   rf.IdempotencyKey,
			IntentCode:  pi.Code,
			GatewayTxID: pi.GatewayTxID,
			Amount:      rf.Amount,
			Reason:      rf.Reason,
		})
	}

	bg := context.WithoutCancel(ctx)
	now := uc.clock.Now()
	err = uc.repo.WithTx(bg, func(tx domain.Repository) error {
		locked, err := tx.LockRefund(bg, refundID)
		if err != nil {
			return err
		}
		locked.UpdatedAt = now

		if gwErr != nil {
			if err := domain.MoveRefund(locked, domain.RefundFailed, now); err != nil {
				return err
			}
			locked.FailureReason = truncate(gwErr.Error(), 255)
			rf = locked
			return tx.UpdateRefund(bg, locked)
		}

		if err := domain.MoveRefund(locked, domain.RefundCompleted, now); err != nil {
			return err
		}
		locked.GatewayRef = ref
		locked.FailureReason = ""
		if err := tx.UpdateRefund(bg, locked); err != nil {
			return err
		}

		intent, err := tx.LockIntent(bg, locked.PaymentIntentID)
		if err != nil {
			return err
		}
		intent.RefundedAmount = intent.RefundedAmount.Add(locked.Amount)
		intent.UpdatedAt = now
		rf, pi = locked, intent
		return tx.UpdateIntent(bg, intent)
	})
	if err != nil {
		return err
	}

	if gwErr != nil {
		return httperr.ErrRetryable("refund_failed", gwErr.Error())
	}

	uc.audit.Dispatch(audit.Event{
		Action:   "refund_completed",
		Entity:   "refund",
		EntityID: &rf.ID,
		Metadata: map[string]any{
			"intent_code": pi.Code,
			"amount":      rf.Amount.StringFixed(2),
			"gateway_ref": rf.GatewayRef,
		},
	})
	publish(ctx, uc.pub, events.RKRefundCompleted, pi, rf.Reason, now)
	return nil
}
