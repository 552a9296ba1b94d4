package payment

import (
	"context"
	"log"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

const refundPrefixCancel = "cancel"

type HandleCallback struct {
	repo     domain.Repository
	audit    *audit.Dispatcher
	clock    timezone.Clock
	pub      events.Publisher
	gateways domain.Registry
	refunds  *AppointmentRefunder
}

func NewHandleCallback(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	gateways domain.Registry,
	refunds *AppointmentRefunder,
) *HandleCallback {
	return &HandleCallback{
		repo:     repo,
		audit:    audit,
		clock:    clock,
		pub:      pub,
		gateways: gateways,
		refunds:  refunds,
	}
}

// Execute applies a gateway notification. Deliveries are at least once:
// repeating the outcome an intent already has changes nothing.
func (uc *HandleCallback) Execute(
	ctx context.Context,
	provider string,
	fields map[string]string,
	signature string,
) (*models.PaymentIntent, error) {

	ctx, span := tracer.Start(ctx, "payment.callback")
	defer span.End()

	gw, err := uc.gateways.Get(provider)
	if err != nil {
		return nil, httperr.ErrBusinessf("unknown_provider", "%v", err)
	}
	if !gw.VerifyCallback(fields, signature) {
		log.Printf("[payment] %s callback with invalid signature", provider)
		return nil, httperr.ErrBusiness("invalid_signature")
	}

	res, err := gw.ResolveCallback(ctx, fields)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := uc.clock.Now()
	var (
		pi        *models.PaymentIntent
		ap        *models.Appointment
		changed   bool
		refundDue bool
	)

	err = uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if pi, err = tx.LockIntentByCode(ctx, res.IntentCode); err != nil {
			return err
		}

		if res.Success {
			changed, err = domain.Complete(pi, res.CapturedAmount, res.GatewayTxID, now)
		} else {
			changed, err = domain.Fail(pi, truncate(res.ResultCode+" "+res.Message, 255), now)
		}
		if err != nil || !changed {
			return err
		}

		pi.UpdatedAt = now
		if err := tx.UpdateIntent(ctx, pi); err != nil {
			return err
		}

		if pi.AppointmentID == nil || !res.Success {
			return nil
		}
		if ap, _, err = resync(ctx, tx, *pi.AppointmentID, now); err != nil {
			return err
		}
		refundDue = holdsRefundableMoney(ap)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !changed {
		log.Printf("[payment] duplicate %s callback for %s ignored (status %s)", provider, pi.Code, pi.Status)
		return pi, nil
	}

	key := events.RKPaymentFailed
	action := "payment_failed"
	if res.Success {
		key = events.RKPaymentCompleted
		action = "payment_completed"
	}
	uc.audit.Dispatch(auditIntent(pi, nil, action, map[string]any{
		"code":        pi.Code,
		"captured":    pi.CapturedAmount.StringFixed(2),
		"gateway_tx":  pi.GatewayTxID,
		"result_code": res.ResultCode,
	}))
	publish(ctx, uc.pub, key, pi, res.Message, now)

	if refundDue && uc.refunds != nil {
		if _, err := uc.refunds.RefundAppointment(ctx, ap.ID, ap.PaidAmount, refundPrefixCancel, "payment captured after cancellation"); err != nil {
			log.Printf("[payment] refund for cancelled appointment %s: %v", ap.Code, err)
		}
	}
	return pi, nil
}
