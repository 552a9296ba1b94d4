package appointment

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

// ======================================================
// INPUT
// ======================================================

type CreateAppointmentInput struct {
	CustomerID     uint
	VehicleID      uint
	SlotID         uint
	ServiceIDs     []uint
	SubscriptionID *uint
	Notes          string

	Actor domain.Actor
}

// ======================================================
// USE CASE
// ======================================================

type CreateAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
}

func NewCreateAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *CreateAppointment {
	return &CreateAppointment{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
	}
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *CreateAppointment) Execute(
	ctx context.Context,
	in CreateAppointmentInput,
) (*models.Appointment, error) {

	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(attribute.Int("slot.id", int(in.SlotID)))

	now := uc.clock.Now()
	var ap *models.Appointment

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {

		// --------------------------------------------------
		// 1. Vehicle belongs to the customer
		// --------------------------------------------------
		vehicle, err := tx.GetVehicle(ctx, in.VehicleID)
		if err != nil {
			return err
		}
		if vehicle.CustomerID != in.CustomerID {
			return httperr.ErrBusiness("vehicle_not_owned")
		}

		// --------------------------------------------------
		// 2. Slot
		// --------------------------------------------------
		s, err := tx.GetSlot(ctx, in.SlotID)
		if err != nil {
			return err
		}
		if err := ensureBookable(s, now); err != nil {
			return err
		}

		// --------------------------------------------------
		// 3. Pricing (model overrides, subscription quota)
		// --------------------------------------------------
		services, err := tx.ListServices(ctx, in.ServiceIDs)
		if err != nil {
			return err
		}
		overrides, err := tx.ListModelPrices(ctx, vehicle.VehicleModelID, in.ServiceIDs)
		if err != nil {
			return err
		}

		remaining := map[uint]int{}
		if in.SubscriptionID != nil {
			sub, err := tx.GetActiveSubscription(ctx, *in.SubscriptionID, in.CustomerID, in.VehicleID, now)
			if err != nil {
				if httperr.IsNotFound(err) {
					return httperr.ErrBusiness("subscription_not_active")
				}
				return err
			}
			if remaining, err = tx.RemainingQuota(ctx, sub.ID); err != nil {
				return err
			}
		}

		lines := domain.BuildLines(services, overrides, remaining, domain.SourceRegular)
		cost, duration := domain.Totals(lines)

		// --------------------------------------------------
		// 4. Admission; the slot row stays locked until commit
		// --------------------------------------------------
		ok, err := tx.Slots().TryReserve(ctx, s.ID)
		if err != nil {
			return err
		}
		if !ok {
			return slot.ErrSlotFull()
		}

		// --------------------------------------------------
		// 5. Insert
		// --------------------------------------------------
		code, err := domain.GenerateCode(ctx, now, tx.CodeExists)
		if err != nil {
			return err
		}

		ap = &models.Appointment{
			Code:                 code,
			CustomerID:           in.CustomerID,
			VehicleID:            in.VehicleID,
			ServiceCenterID:      s.ServiceCenterID,
			SlotID:               s.ID,
			Status:               int(domain.StatusPending),
			EstimatedCost:        cost,
			EstimatedDurationMin: duration,
			PaymentStatus:        string(domain.PaymentStatusFor(cost, decimal.Zero)),
			PaidAmount:           decimal.Zero,
			SubscriptionID:       in.SubscriptionID,
			Notes:                in.Notes,
			CreatedBy:            in.Actor.ID,
			Services:             lines,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return tx.CreateAppointment(ctx, ap)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// --------------------------------------------------
	// 6. Audit + event
	// --------------------------------------------------
	uc.audit.Dispatch(auditEvent(ap, in.Actor, "appointment_created", map[string]any{
		"code":           ap.Code,
		"slot_id":        ap.SlotID,
		"estimated_cost": ap.EstimatedCost.StringFixed(2),
	}))
	publish(ctx, uc.pub, events.RKAppointmentCreated, ap, now)

	return ap, nil
}
