package appointment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

const refundPrefixAdjust = "adjust"

// ======================================================
// COMPLETE
// ======================================================

type CompleteFromWorkOrder struct {
	repo     domain.Repository
	audit    *audit.Dispatcher
	clock    timezone.Clock
	pub      events.Publisher
	refunder Refunder
}

func NewCompleteFromWorkOrder(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	refunder Refunder,
) *CompleteFromWorkOrder {
	return &CompleteFromWorkOrder{
		repo:     repo,
		audit:    audit,
		clock:    clock,
		pub:      pub,
		refunder: refunder,
	}
}

// Execute settles the appointment against the work order's final cost
// and deducts subscription usage. Repeating it is harmless: a settled
// appointment is left alone and usage rows are unique per service.
func (uc *CompleteFromWorkOrder) Execute(
	ctx context.Context,
	ev events.WorkCompleted,
) error {

	ctx, span := tracer.Start(ctx, "appointment.complete_from_work_order")
	defer span.End()
	span.SetAttributes(
		attribute.Int("appointment.id", int(ev.AppointmentID)),
		attribute.Int("work_order.id", int(ev.WorkOrderID)),
	)

	now := uc.clock.Now()
	var (
		ap       *models.Appointment
		settled  bool
		deducted int
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, ev.AppointmentID); err != nil {
			return err
		}

		switch domain.Status(ap.Status) {
		case domain.StatusCompleted, domain.StatusCompletedWithUnpaidBalance:
			// already settled; only make sure usage was recorded
		case domain.StatusCheckedIn:
			if err := domain.Transition(ap, domain.StatusInProgress, domain.System(), now); err != nil {
				return err
			}
			fallthrough
		case domain.StatusInProgress:
			paid, err := tx.SumCaptured(ctx, ap.ID)
			if err != nil {
				return err
			}
			if err := domain.Settle(ap, ev.FinalCost, paid, now); err != nil {
				return err
			}
			ap.UpdatedAt = now
			if err := tx.UpdateAppointment(ctx, ap); err != nil {
				return err
			}
			settled = true
		default:
			return httperr.ErrBusinessf(
				"invalid_state",
				"appointment %s is %s and cannot be completed", ap.Code, domain.Status(ap.Status),
			)
		}

		deducted, err = deductSubscription(ctx, tx, ap, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if !settled {
		return nil
	}

	uc.audit.Dispatch(auditEvent(ap, domain.System(), "appointment_completed", map[string]any{
		"work_order_id":      ev.WorkOrderID,
		"invoice_id":         ev.InvoiceID,
		"final_cost":         ev.FinalCost.StringFixed(2),
		"paid_amount":        ap.PaidAmount.StringFixed(2),
		"status":             domain.Status(ap.Status).String(),
		"subscription_usage": deducted,
	}))
	publish(ctx, uc.pub, events.RKAppointmentCompleted, ap, now)
	refundAfterCommit(ctx, uc.refunder, ap, domain.Overpaid(ap), refundPrefixAdjust, "final cost below amount paid")

	return nil
}

func deductSubscription(
	ctx context.Context,
	tx domain.Repository,
	ap *models.Appointment,
	now time.Time,
) (int, error) {

	if ap.SubscriptionID == nil {
		return 0, nil
	}
	n := 0
	for _, l := range ap.Services {
		if l.Source != string(domain.SourceSubscription) {
			continue
		}
		ok, err := tx.DeductUsage(ctx, *ap.SubscriptionID, l.ServiceID, ap.ID, now)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// ======================================================
// START
// ======================================================

type MarkInProgress struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewMarkInProgress(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *MarkInProgress {
	return &MarkInProgress{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute follows the work order into InProgress. Anything past
// CheckedIn is left as is.
func (uc *MarkInProgress) Execute(ctx context.Context, ev events.WorkStarted) error {
	now := uc.clock.Now()
	var (
		ap      *models.Appointment
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, ev.AppointmentID); err != nil {
			return err
		}
		if domain.Status(ap.Status) != domain.StatusCheckedIn {
			return nil
		}
		if err := domain.Transition(ap, domain.StatusInProgress, domain.Staff(ev.TechnicianID), now); err != nil {
			return err
		}
		ap.UpdatedAt = now
		changed = true
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil || !changed {
		return err
	}

	uc.audit.Dispatch(auditEvent(ap, domain.Staff(ev.TechnicianID), "appointment_in_progress", map[string]any{
		"work_order_id": ev.WorkOrderID,
	}))
	return nil
}

// ======================================================
// CANCEL
// ======================================================

type CancelFromWorkOrder struct {
	repo     domain.Repository
	audit    *audit.Dispatcher
	clock    timezone.Clock
	pub      events.Publisher
	refunder Refunder
}

func NewCancelFromWorkOrder(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	refunder Refunder,
) *CancelFromWorkOrder {
	return &CancelFromWorkOrder{
		repo:     repo,
		audit:    audit,
		clock:    clock,
		pub:      pub,
		refunder: refunder,
	}
}

func (uc *CancelFromWorkOrder) Execute(ctx context.Context, ev events.WorkCancelled) error {
	actor := domain.System()
	if ev.ActorID != nil {
		actor = domain.Staff(*ev.ActorID)
	}

	now := uc.clock.Now()
	var (
		ap      *models.Appointment
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, ev.AppointmentID); err != nil {
			return err
		}
		if domain.Status(ap.Status).IsTerminal() {
			return nil
		}
		reason := fmt.Sprintf("work order cancelled: %s", ev.Reason)
		if err := domain.Cancel(ap, actor, reason, now); err != nil {
			return err
		}
		ap.UpdatedAt = now
		changed = true
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil || !changed {
		return err
	}

	uc.audit.Dispatch(auditEvent(ap, actor, "appointment_cancelled", map[string]any{
		"work_order_id": ev.WorkOrderID,
		"reason":        ap.CancellationReason,
	}))
	publish(ctx, uc.pub, events.RKAppointmentCancelled, ap, now)
	refundAfterCommit(ctx, uc.refunder, ap, ap.PaidAmount, refundPrefixCancel, "work order cancelled")

	return nil
}

// ======================================================
// WIRING
// ======================================================

// Subscribe routes work-order facts to the appointment side.
func Subscribe(
	bus *events.Bus,
	start *MarkInProgress,
	complete *CompleteFromWorkOrder,
	cancel *CancelFromWorkOrder,
) {
	bus.Subscribe(events.RKWorkStarted, func(ctx context.Context, ev events.Event) error {
		e, ok := ev.(events.WorkStarted)
		if !ok || e.AppointmentID == 0 {
			return nil
		}
		return start.Execute(ctx, e)
	})
	bus.Subscribe(events.RKWorkCompleted, func(ctx context.Context, ev events.Event) error {
		e, ok := ev.(events.WorkCompleted)
		if !ok || e.AppointmentID == 0 {
			return nil
		}
		return complete.Execute(ctx, e)
	})
	bus.Subscribe(events.RKWorkCancelled, func(ctx context.Context, ev events.Event) error {
		e, ok := ev.(events.WorkCancelled)
		if !ok || e.AppointmentID == 0 {
			return nil
		}
		return cancel.Execute(ctx, e)
	})
}
