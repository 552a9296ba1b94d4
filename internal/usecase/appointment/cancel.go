package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

const refundPrefixCancel = "cancel"

type CancelAppointmentInput struct {
	ID         uint
	CustomerID *uint
	Reason     string
	Actor      domain.Actor
}

type CancelAppointment struct {
	repo     domain.Repository
	audit    *audit.Dispatcher
	clock    timezone.Clock
	pub      events.Publisher
	refunder Refunder
}

func NewCancelAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
	refunder Refunder,
) *CancelAppointment {
	return &CancelAppointment{
		repo:     repo,
		audit:    audit,
		clock:    clock,
		pub:      pub,
		refunder: refunder,
	}
}

// Execute soft-cancels the appointment. A staff cancellation after
// check-in cancels the open work order in the same unit of work, and is
// refused when that order can no longer be cancelled. Money already
// captured is refunded once the cancellation has committed.
func (uc *CancelAppointment) Execute(
	ctx context.Context,
	in CancelAppointmentInput,
) (*models.Appointment, error) {

	reason := strings.TrimSpace(in.Reason)
	if strings.HasPrefix(reason, domain.AutoCancelPrefix) {
		return nil, httperr.ErrBusiness("reserved_reason")
	}

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
		if err := ensureOwner(ap, in.CustomerID); err != nil {
			return err
		}

		from := domain.Status(ap.Status)
		if err := domain.Cancel(ap, in.Actor, reason, now); err != nil {
			return err
		}
		if from == domain.StatusCheckedIn || from == domain.StatusInProgress {
			if wo, err = cancelWorkOrder(ctx, tx, ap, in.Actor, reason, now); err != nil {
				return err
			}
		}

		ap.UpdatedAt = now
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"reason":      reason,
		"paid_amount": ap.PaidAmount.StringFixed(2),
	}
	if wo != nil {
		meta["work_order_id"] = wo.ID
		uc.audit.Dispatch(audit.Event{
			ServiceCenterID: wo.ServiceCenterID,
			UserID:          in.Actor.ID,
			Actor:           string(in.Actor.Kind),
			Action:          "work_order_cancelled",
			Entity:          "work_order",
			EntityID:        &wo.ID,
			Metadata:        map[string]any{"reason": wo.CancellationReason},
		})
	}
	uc.audit.Dispatch(auditEvent(ap, in.Actor, "appointment_cancelled", meta))
	publish(ctx, uc.pub, events.RKAppointmentCancelled, ap, now)
	refundAfterCommit(ctx, uc.refunder, ap, ap.PaidAmount, refundPrefixCancel, "appointment cancelled")

	return ap, nil
}

// cancelWorkOrder closes the order opened at check-in: open lines are
// cancelled, reserved parts go back to stock and the timeline records why.
func cancelWorkOrder(
	ctx context.Context,
	tx domain.Repository,
	ap *models.Appointment,
	actor domain.Actor,
	reason string,
	now time.Time,
) (*models.WorkOrder, error) {

	wo, err := tx.LockWorkOrderFor(ctx, ap.ID)
	if err != nil || wo == nil {
		return nil, err
	}

	from := workorder.Status(wo.Status)
	if from == workorder.StatusCancelled {
		return nil, nil
	}
	if _, err := workorder.CanTransition(from, workorder.StatusCancelled); err != nil {
		return nil, httperr.Wrap(err, "work_order_not_cancellable",
			"work order %s is %s and cannot be cancelled", wo.Code, from)
	}

	workorder.CancelLines(wo)
	if _, err := workorder.Transition(wo, workorder.StatusCancelled, now); err != nil {
		return nil, err
	}
	wo.CancellationReason = fmt.Sprintf("appointment cancelled: %s", reason)
	wo.UpdatedAt = now

	return wo, tx.CancelWorkOrder(ctx, wo, &models.WorkOrderTimeline{
		WorkOrderID: wo.ID,
		Kind:        "status_changed",
		FromStatus:  string(from),
		ToStatus:    string(workorder.StatusCancelled),
		Message:     wo.CancellationReason,
		ActorID:     actor.ID,
		CreatedAt:   now,
	})
}

// AutoCancel is the reconciliation side of cancellation: it re-checks,
// under the row lock, that the booking is still Pending, unpaid and older
// than createdBefore. It reports whether it cancelled.
func (uc *CancelAppointment) AutoCancel(
	ctx context.Context,
	id uint,
	createdBefore time.Time,
	window time.Duration,
) (bool, error) {

	now := uc.clock.Now()
	var (
		ap      *models.Appointment
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, id); err != nil {
			return err
		}
		if domain.Status(ap.Status) != domain.StatusPending ||
			ap.PaymentStatus != string(domain.PaymentPending) ||
			!ap.CreatedAt.Before(createdBefore) {
			return nil
		}

		reason := fmt.Sprintf("%s: no payment within %s", domain.AutoCancelPrefix, window)
		if err := domain.Cancel(ap, domain.System(), reason, now); err != nil {
			return err
		}
		ap.UpdatedAt = now
		changed = true
		return tx.UpdateAppointment(ctx, ap)
	})
	if err != nil || !changed {
		return false, err
	}

	uc.audit.Dispatch(auditEvent(ap, domain.System(), "appointment_auto_cancelled", map[string]any{
		"reason": ap.CancellationReason,
	}))
	publish(ctx, uc.pub, events.RKAppointmentCancelled, ap, now)

	return true, nil
}

type DeleteAppointment struct {
	repo  domain.Repository
	audit *audit.Dispatcher
}

func NewDeleteAppointment(
	repo domain.Repository,
	audit *audit.Dispatcher,
) *DeleteAppointment {
	return &DeleteAppointment{
		repo:  repo,
		audit: audit,
	}
}

// Execute hard-deletes a Pending appointment that holds no money.
func (uc *DeleteAppointment) Execute(
	ctx context.Context,
	id uint,
	customerID *uint,
	actor domain.Actor,
) error {

	var snapshot models.Appointment
	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		ap, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := ensureOwner(ap, customerID); err != nil {
			return err
		}
		if err := domain.EnsureDeletable(ap); err != nil {
			return err
		}

		paid, err := tx.SumCaptured(ctx, ap.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return httperr.ErrBusinessf("appointment_has_payments", "appointment %s has captured payments; cancel it instead", ap.Code)
		}

		snapshot = *ap
		return tx.DeleteAppointment(ctx, ap.ID)
	})
	if err != nil {
		return err
	}

	uc.audit.Dispatch(auditEvent(&snapshot, actor, "appointment_deleted", map[string]any{
		"code": snapshot.Code,
	}))
	return nil
}
