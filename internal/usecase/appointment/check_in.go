package appointment

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type CheckInInput struct {
	ID        uint
	MileageIn int
	Actor     domain.Actor
}

type CheckInAppointment struct {
	repo    domain.Repository
	audit   *audit.Dispatcher
	clock   timezone.Clock
	pub     events.Publisher
	taxRate decimal.Decimal
}

func NewCheckInAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	taxRate decimal.Decimal,
) *CheckInAppointment {
	return &CheckInAppointment{
		repo:    repo,
		audit:   audit,
		clock:   clock,
		pub:     pub,
		taxRate: taxRate,
	}
}

// Execute checks the customer in and opens the work order in the same
// unit of work. A second check-in is rejected.
func (uc *CheckInAppointment) Execute(
	ctx context.Context,
	in CheckInInput,
) (*models.Appointment, *models.WorkOrder, error) {

	now := uc.clock.Now()
	var (
		ap *models.Appointment
		wo *models.WorkOrder
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, in.ID); err != nil {
			return err
		}

		exists, err := tx.HasWorkOrder(ctx, ap.ID)
		if err != nil {
			return err
		}
		if exists {
			return httperr.ErrBusiness("already_checked_in")
		}

		if err := domain.Transition(ap, domain.StatusCheckedIn, in.Actor, now); err != nil {
			return err
		}

		vehicle, err := tx.GetVehicle(ctx, ap.VehicleID)
		if err != nil {
			return err
		}
		mileage := in.MileageIn
		if mileage <= 0 {
			mileage = vehicle.Mileage
		}

		// --------------------------------------------------
		// Checklist: a broken template never blocks check-in
		// --------------------------------------------------
		serviceIDs := make([]uint, 0, len(ap.Services))
		for _, l := range ap.Services {
			serviceIDs = append(serviceIDs, l.ServiceID)
		}

		var checklist []models.ChecklistItem
		templates, err := tx.ListChecklistTemplates(ctx, serviceIDs)
		if err != nil {
			log.Printf("[check-in] %s: loading checklist templates: %v", ap.Code, err)
		} else {
			var errs []error
			checklist, errs = workorder.ParseTemplates(templates)
			for _, e := range errs {
				log.Printf("[check-in] %s: %v", ap.Code, e)
			}
		}

		// --------------------------------------------------
		// Work order
		// --------------------------------------------------
		code, err := workorder.GenerateCode(ctx, now, tx.WorkOrderCodeExists)
		if err != nil {
			return err
		}

		wo = workorder.New(workorder.Draft{
			Code:            code,
			AppointmentID:   &ap.ID,
			ServiceCenterID: ap.ServiceCenterID,
			CustomerID:      ap.CustomerID,
			VehicleID:       ap.VehicleID,
			AdvisorID:       in.Actor.ID,
			MileageIn:       mileage,
			Services:        workorder.ServicesFromAppointment(ap.Services),
			Checklist:       checklist,
		}, uc.taxRate)
		wo.CreatedAt = now
		wo.UpdatedAt = now

		if err := tx.CreateWorkOrder(ctx, wo); err != nil {
			return err
		}

		ap.UpdatedAt = now
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil {
		return nil, nil, err
	}

	uc.audit.Dispatch(auditEvent(ap, in.Actor, "appointment_checked_in", map[string]any{
		"work_order_id":   wo.ID,
		"work_order_code": wo.Code,
		"checklist_items": len(wo.Checklist),
	}))
	publish(ctx, uc.pub, events.RKAppointmentCheckedIn, ap, now)

	return ap, wo, nil
}
