package payment

import (
	"context"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type ExpireIntent struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
}

func NewExpireIntent(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *ExpireIntent {
	return &ExpireIntent{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
	}
}

// Execute expires a Pending intent past its deadline. A callback that
// won the race leaves the intent alone and Execute reports false.
func (uc *ExpireIntent) Execute(ctx context.Context, id uint) (bool, error) {
	now := uc.clock.Now()
	var (
		pi      *models.PaymentIntent
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if pi, err = tx.LockIntent(ctx, id); err != nil {
			return err
		}
		if domain.IntentStatus(pi.Status) != domain.IntentPending || now.Before(pi.ExpiresAt) {
			return nil
		}
		if changed, err = domain.Expire(pi, now); err != nil || !changed {
			return err
		}
		pi.UpdatedAt = now
		return tx.UpdateIntent(ctx, pi)
	})
	if err != nil || !changed {
		return false, err
	}

	uc.audit.Dispatch(auditIntent(pi, nil, "payment_intent_expired", map[string]any{"code": pi.Code}))
	publish(ctx, uc.pub, events.RKPaymentExpired, pi, "", now)
	return true, nil
}

type CancelIntent struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewCancelIntent(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *CancelIntent {
	return &CancelIntent{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

func (uc *CancelIntent) Execute(
	ctx context.Context,
	id uint,
	reason string,
	userID *uint,
) (*models.PaymentIntent, error) {

	now := uc.clock.Now()
	var (
		pi      *models.PaymentIntent
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if pi, err = tx.LockIntent(ctx, id); err != nil {
			return err
		}
		if changed, err = domain.Cancel(pi, truncate(reason, 255), now); err != nil || !changed {
			return err
		}
		pi.UpdatedAt = now
		return tx.UpdateIntent(ctx, pi)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.audit.Dispatch(auditIntent(pi, userID, "payment_intent_cancelled", map[string]any{
			"code":   pi.Code,
			"reason": reason,
		}))
	}
	return pi, nil
}

type GetIntent struct {
	repo domain.Repository
}

func NewGetIntent(repo domain.Repository) *GetIntent {
	return &GetIntent{repo: repo}
}

func (uc *GetIntent) Execute(ctx context.Context, id uint, customerID *uint) (*models.PaymentIntent, error) {
	pi, err := uc.repo.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}
	if customerID != nil && pi.CustomerID != *customerID {
		return nil, httperr.ErrNotFound("payment_intent")
	}
	return pi, nil
}

type ResyncAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewResyncAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *ResyncAppointment {
	return &ResyncAppointment{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute makes the appointment's paid amount equal the sum of captures
// of its completed intents. It reports whether anything had drifted.
func (uc *ResyncAppointment) Execute(ctx context.Context, appointmentID uint) (bool, error) {
	now := uc.clock.Now()
	var (
		ap      *models.Appointment
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		ap, changed, err = resync(ctx, tx, appointmentID, now)
		return err
	})
	if err != nil || !changed {
		return false, err
	}

	uc.audit.Dispatch(audit.Event{
		ServiceCenterID: ap.ServiceCenterID,
		Action:          "payment_resynced",
		Entity:          "appointment",
		EntityID:        &ap.ID,
		Metadata: map[string]any{
			"paid_amount":    ap.PaidAmount.StringFixed(2),
			"payment_status": ap.PaymentStatus,
		},
	})
	return true, nil
}
