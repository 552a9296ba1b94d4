package workorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type CompleteConfig struct {
	TaxRate  decimal.Decimal
	Interval domain.ServiceInterval
	Location *time.Location
}

type CompleteWorkOrder struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
	cfg   CompleteConfig
}

func NewCompleteWorkOrder(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	cfg CompleteConfig,
) *CompleteWorkOrder {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CompleteWorkOrder{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
		cfg:   cfg,
	}
}

// Execute closes the order in one unit of work: totals and tax, line
// sub-statuses, status, exactly one invoice net of pre-payment, the
// vehicle's maintenance history and a timeline entry. Only after commit
// is the appointment told; its error is returned to the caller.
//
// Completing an already completed order re-sends the appointment trigger
// and returns the existing invoice.
func (uc *CompleteWorkOrder) Execute(
	ctx context.Context,
	id uint,
	userID *uint,
) (*models.WorkOrder, *models.Invoice, error) {

	ctx, span := tracer.Start(ctx, "workorder.complete")
	defer span.End()
	span.SetAttributes(attribute.Int("work_order.id", int(id)))

	now := uc.clock.Now()
	var (
		wo      *models.WorkOrder
		inv     *models.Invoice
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.AppointmentID != nil {
			if err := ensureAppointmentOpen(ctx, tx, *current.AppointmentID); err != nil {
				return err
			}
		}
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}

		if domain.Status(wo.Status) == domain.StatusCompleted {
			inv, err = tx.FindInvoice(ctx, wo.ID)
			return err
		}

		// --------------------------------------------------
		// 1. Guards (nothing written yet)
		// --------------------------------------------------
		if _, err := domain.CanTransition(domain.Status(wo.Status), domain.StatusCompleted); err != nil {
			return err
		}
		if err := domain.EnsureChecklistDone(wo); err != nil {
			return err
		}
		if err := domain.EnsureApproved(wo); err != nil {
			return err
		}

		// --------------------------------------------------
		// 2. Totals, lines, status
		// --------------------------------------------------
		domain.Recompute(wo, uc.cfg.TaxRate)
		domain.FinalizeLines(wo)
		if err := tx.SaveServices(ctx, wo.Services); err != nil {
			return err
		}
		if err := tx.SaveParts(ctx, wo.Parts); err != nil {
			return err
		}
		if changed, err = transition(ctx, tx, wo, domain.StatusCompleted, userID, "work completed", now); err != nil {
			return err
		}

		// --------------------------------------------------
		// 3. Invoice (create or reuse)
		// --------------------------------------------------
		if inv, err = uc.invoice(ctx, tx, wo, now); err != nil {
			return err
		}

		// --------------------------------------------------
		// 4. Maintenance history
		// --------------------------------------------------
		return uc.history(ctx, tx, wo, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	if changed {
		uc.audit.Dispatch(auditEvent(wo, userID, "work_order_completed", map[string]any{
			"total":        wo.Total.StringFixed(2),
			"invoice_code": inv.Code,
			"amount_due":   inv.AmountDue.StringFixed(2),
		}))
	}

	// --------------------------------------------------
	// 5. Appointment side, after commit
	// --------------------------------------------------
	if wo.AppointmentID != nil && uc.pub != nil {
		ev := events.WorkCompleted{
			WorkOrderID:   wo.ID,
			AppointmentID: *wo.AppointmentID,
			FinalCost:     wo.Total,
			At:            now,
		}
		if inv != nil {
			ev.InvoiceID = inv.ID
		}
		if err := uc.pub.Publish(ctx, ev); err != nil {
			span.RecordError(err)
			return wo, inv, err
		}
	}
	return wo, inv, nil
}

// ensureAppointmentOpen refuses to bill for an appointment that was
// cancelled or otherwise closed while the work was under way.
func ensureAppointmentOpen(ctx context.Context, tx domain.Repository, appointmentID uint) error {
	st, err := tx.LockAppointmentStatus(ctx, appointmentID)
	if err != nil {
		return err
	}
	switch s := apptDomain.Status(st); s {
	case apptDomain.StatusCheckedIn, apptDomain.StatusInProgress,
		apptDomain.StatusCompleted, apptDomain.StatusCompletedWithUnpaidBalance:
		return nil
	default:
		return httperr.ErrBusinessf("appointment_closed", "appointment is %s; the work order cannot be billed", s)
	}
}

func (uc *CompleteWorkOrder) invoice(
	ctx context.Context,
	tx domain.Repository,
	wo *models.WorkOrder,
	now time.Time,
) (*models.Invoice, error) {

	inv, err := tx.FindInvoice(ctx, wo.ID)
	if err != nil {
		return nil, err
	}

	prepaid := decimal.Zero
	if wo.AppointmentID != nil {
		if prepaid, err = tx.AppointmentPaid(ctx, *wo.AppointmentID); err != nil {
			return nil, err
		}
	}

	if inv == nil {
		inv = &models.Invoice{}
		if inv.Code, err = uc.nextInvoiceCode(ctx, tx, now); err != nil {
			return nil, err
		}
	}

	domain.ApplyInvoice(inv, wo, prepaid, now)
	if err := tx.SaveInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// nextInvoiceCode continues the day's sequence, skipping codes in use.
func (uc *CompleteWorkOrder) nextInvoiceCode(
	ctx context.Context,
	tx domain.Repository,
	now time.Time,
) (string, error) {

	from, to := timezone.DayBounds(now, uc.cfg.Location)
	issued, err := tx.CountInvoicesIssued(ctx, from, to)
	if err != nil {
		return "", err
	}

	day := now.In(uc.cfg.Location)
	for seq := int(issued) + 1; ; seq++ {
		code := domain.NewInvoiceCode(day, seq)
		taken, err := tx.InvoiceCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
}

func (uc *CompleteWorkOrder) history(
	ctx context.Context,
	tx domain.Repository,
	wo *models.WorkOrder,
	now time.Time,
) error {

	vehicle, err := tx.GetVehicle(ctx, wo.VehicleID)
	if err != nil {
		return err
	}
	mileage := max(wo.MileageIn, vehicle.Mileage)

	h, err := tx.FindHistory(ctx, wo.ID)
	if err != nil {
		return err
	}
	if h == nil {
		h = &models.MaintenanceHistory{CreatedAt: now}
	}
	domain.RollForward(h, wo, mileage, uc.cfg.Interval, now)
	h.UpdatedAt = now
	if err := tx.SaveHistory(ctx, h); err != nil {
		return err
	}
	return tx.UpdateVehicleMileage(ctx, wo.VehicleID, mileage)
}
