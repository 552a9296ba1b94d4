package appointment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type RescheduleAppointmentInput struct {
	ID         uint
	CustomerID *uint
	NewSlotID  uint
	Actor      domain.Actor
}

type RescheduleAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
}

func NewRescheduleAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *RescheduleAppointment {
	return &RescheduleAppointment{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
	}
}

// Execute books a sibling on the new slot with the same lines and cost,
// moves captured payments onto it and retires the original as
// Rescheduled, which frees its slot. Both records link to each other.
func (uc *RescheduleAppointment) Execute(
	ctx context.Context,
	in RescheduleAppointmentInput,
) (*models.Appointment, error) {

	now := uc.clock.Now()
	var old, next *models.Appointment

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if old, err = tx.LockAppointment(ctx, in.ID); err != nil {
			return err
		}
		if err := ensureOwner(old, in.CustomerID); err != nil {
			return err
		}
		if err := domain.EnsureEditable(old); err != nil {
			return err
		}
		if in.NewSlotID == old.SlotID {
			return httperr.ErrBusiness("same_slot")
		}

		// --------------------------------------------------
		// New slot admission
		// --------------------------------------------------
		s, err := tx.GetSlot(ctx, in.NewSlotID)
		if err != nil {
			return err
		}
		if err := ensureBookable(s, now); err != nil {
			return err
		}
		ok, err := tx.Slots().TryReserve(ctx, s.ID)
		if err != nil {
			return err
		}
		if !ok {
			return slot.ErrSlotFull()
		}

		// --------------------------------------------------
		// Sibling
		// --------------------------------------------------
		code, err := domain.GenerateCode(ctx, now, tx.CodeExists)
		if err != nil {
			return err
		}

		next = &models.Appointment{
			Code:                 code,
			CustomerID:           old.CustomerID,
			VehicleID:            old.VehicleID,
			ServiceCenterID:      s.ServiceCenterID,
			SlotID:               s.ID,
			Status:               int(domain.StatusPending),
			EstimatedCost:        old.EstimatedCost,
			EstimatedDurationMin: old.EstimatedDurationMin,
			PaymentStatus:        old.PaymentStatus,
			PaidAmount:           old.PaidAmount,
			PaymentIntentID:      old.PaymentIntentID,
			SubscriptionID:       old.SubscriptionID,
			RescheduledFromID:    &old.ID,
			Notes:                old.Notes,
			CreatedBy:            in.Actor.ID,
			Services:             domain.CloneLines(old.Services),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.CreateAppointment(ctx, next); err != nil {
			return err
		}
		if err := tx.MoveIntents(ctx, old.ID, next.ID); err != nil {
			return err
		}

		// --------------------------------------------------
		// Retire the original
		// --------------------------------------------------
		if err := domain.Transition(old, domain.StatusRescheduled, in.Actor, now); err != nil {
			return err
		}
		old.RescheduledToID = &next.ID
		old.PaymentIntentID = nil
		domain.ApplyPayment(old, decimal.Zero, now)
		old.UpdatedAt = now
		return tx.UpdateAppointment(ctx, old)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(old, in.Actor, "appointment_rescheduled", map[string]any{
		"to_id":   next.ID,
		"to_code": next.Code,
		"slot_id": next.SlotID,
	}))
	publish(ctx, uc.pub, events.RKAppointmentRescheduled, old, now)
	publish(ctx, uc.pub, events.RKAppointmentCreated, next, now)

	return next, nil
}
