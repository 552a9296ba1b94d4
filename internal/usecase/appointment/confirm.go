package appointment

import (
	"context"
	"time"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type ConfirmAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
}

func NewConfirmAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *ConfirmAppointment {
	return &ConfirmAppointment{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
	}
}

func (uc *ConfirmAppointment) Execute(
	ctx context.Context,
	id uint,
	actor domain.Actor,
) (*models.Appointment, error) {

	now := uc.clock.Now()
	ap, err := transitionLocked(ctx, uc.repo, id, func(ap *models.Appointment) error {
		return domain.Transition(ap, domain.StatusConfirmed, actor, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(ap, actor, "appointment_confirmed", nil))
	publish(ctx, uc.pub, events.RKAppointmentConfirmed, ap, now)

	return ap, nil
}

type MarkNoShow struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
	grace time.Duration
}

func NewMarkNoShow(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	grace time.Duration,
) *MarkNoShow {
	return &MarkNoShow{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
		grace: grace,
	}
}

// Execute frees the slot of a confirmed booking the customer never showed up to.
func (uc *MarkNoShow) Execute(
	ctx context.Context,
	id uint,
	actor domain.Actor,
) (*models.Appointment, error) {

	now := uc.clock.Now()
	var ap *models.Appointment

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, id); err != nil {
			return err
		}
		s, err := tx.GetSlot(ctx, ap.SlotID)
		if err != nil {
			return err
		}
		if err := domain.MarkNoShow(ap, s.StartsAt, uc.grace, actor, now); err != nil {
			return err
		}
		ap.UpdatedAt = now
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(ap, actor, "appointment_no_show", nil))
	publish(ctx, uc.pub, events.RKAppointmentNoShow, ap, now)

	return ap, nil
}

// transitionLocked loads the appointment FOR UPDATE, applies fn and saves.
func transitionLocked(
	ctx context.Context,
	repo domain.Repository,
	id uint,
	fn func(ap *models.Appointment) error,
) (*models.Appointment, error) {

	var ap *models.Appointment
	err := repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, id); err != nil {
			return err
		}
		if err := fn(ap); err != nil {
			return err
		}
		return tx.UpdateAppointment(ctx, ap)
	})
	return ap, err
}
