package appointment

import (
	"context"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

// UpdateAppointmentInput leaves a field unchanged when it is nil.
type UpdateAppointmentInput struct {
	ID         uint
	CustomerID *uint

	SlotID     *uint
	ServiceIDs []uint
	Notes      *string

	Actor domain.Actor
}

type UpdateAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewUpdateAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *UpdateAppointment {
	return &UpdateAppointment{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

func (uc *UpdateAppointment) Execute(
	ctx context.Context,
	in UpdateAppointmentInput,
) (*models.Appointment, error) {

	now := uc.clock.Now()
	var (
		ap      *models.Appointment
		changes = map[string]any{}
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, in.ID); err != nil {
			return err
		}
		if err := ensureOwner(ap, in.CustomerID); err != nil {
			return err
		}
		if err := domain.EnsureEditable(ap); err != nil {
			return err
		}

		// --------------------------------------------------
		// Slot: admission on the new slot before anything is written
		// --------------------------------------------------
		if in.SlotID != nil && *in.SlotID != ap.SlotID {
			s, err := tx.GetSlot(ctx, *in.SlotID)
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
			changes["slot_id"] = map[string]uint{"from": ap.SlotID, "to": s.ID}
			ap.SlotID = s.ID
			ap.ServiceCenterID = s.ServiceCenterID
		}

		// --------------------------------------------------
		// Services: kept lines keep their price, new ones are extras
		// --------------------------------------------------
		if in.ServiceIDs != nil {
			lines, err := uc.rebuildLines(ctx, tx, ap, in.ServiceIDs)
			if err != nil {
				return err
			}
			if err := tx.ReplaceServices(ctx, ap.ID, lines); err != nil {
				return err
			}
			ap.Services = lines
			ap.EstimatedCost, ap.EstimatedDurationMin = domain.Totals(lines)

			paid, err := tx.SumCaptured(ctx, ap.ID)
			if err != nil {
				return err
			}
			domain.ApplyPayment(ap, paid, now)
			changes["service_ids"] = in.ServiceIDs
			changes["estimated_cost"] = ap.EstimatedCost.StringFixed(2)
		}

		if in.Notes != nil {
			ap.Notes = *in.Notes
			changes["notes"] = true
		}

		if len(changes) == 0 {
			return nil
		}
		ap.UpdatedBy = in.Actor.ID
		ap.UpdatedAt = now
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		uc.audit.Dispatch(auditEvent(ap, in.Actor, "appointment_updated", changes))
	}
	return ap, nil
}

func (uc *UpdateAppointment) rebuildLines(
	ctx context.Context,
	tx domain.Repository,
	ap *models.Appointment,
	serviceIDs []uint,
) ([]models.AppointmentService, error) {

	if len(serviceIDs) == 0 {
		return nil, httperr.ErrBusiness("no_services")
	}

	existing := make(map[uint]models.AppointmentService, len(ap.Services))
	for _, l := range ap.Services {
		existing[l.ServiceID] = l
	}

	var added []uint
	for _, id := range serviceIDs {
		if _, ok := existing[id]; !ok {
			added = append(added, id)
		}
	}

	var fresh []models.AppointmentService
	if len(added) > 0 {
		vehicle, err := tx.GetVehicle(ctx, ap.VehicleID)
		if err != nil {
			return nil, err
		}
		services, err := tx.ListServices(ctx, added)
		if err != nil {
			return nil, err
		}
		overrides, err := tx.ListModelPrices(ctx, vehicle.VehicleModelID, added)
		if err != nil {
			return nil, err
		}

		remaining := map[uint]int{}
		if ap.SubscriptionID != nil {
			if remaining, err = tx.RemainingQuota(ctx, *ap.SubscriptionID); err != nil {
				return nil, err
			}
			for _, l := range ap.Services {
				if l.Source == string(domain.SourceSubscription) && remaining[l.ServiceID] > 0 {
					remaining[l.ServiceID]--
				}
			}
		}
		fresh = domain.BuildLines(services, overrides, remaining, domain.SourceExtra)
	}

	byID := make(map[uint]models.AppointmentService, len(fresh))
	for _, l := range fresh {
		byID[l.ServiceID] = l
	}

	lines := make([]models.AppointmentService, 0, len(serviceIDs))
	seen := map[uint]bool{}
	for _, id := range serviceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if l, ok := existing[id]; ok {
			lines = append(lines, l)
			continue
		}
		lines = append(lines, byID[id])
	}
	return domain.CloneLines(lines), nil
}
