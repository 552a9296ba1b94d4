package workorder

import (
	"context"
	"strings"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type CancelWorkOrder struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
	pub   events.Publisher
}

func NewCancelWorkOrder(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *CancelWorkOrder {
	return &CancelWorkOrder{
		repo:  repo,
		audit: audit,
		clock: clock,
		pub:   pub,
	}
}

// Execute cancels the order, returns reserved parts and, after commit,
// cancels the linked appointment.
func (uc *CancelWorkOrder) Execute(
	ctx context.Context,
	id uint,
	reason string,
	userID *uint,
) (*models.WorkOrder, error) {

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, httperr.ErrBusiness("reason_required")
	}

	now := uc.clock.Now()
	var (
		wo      *models.WorkOrder
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}
		if _, err := domain.CanTransition(domain.Status(wo.Status), domain.StatusCancelled); err != nil {
			return err
		}

		domain.CancelLines(wo)
		if err := tx.SaveServices(ctx, wo.Services); err != nil {
			return err
		}
		if err := tx.SaveParts(ctx, wo.Parts); err != nil {
			return err
		}
		wo.CancellationReason = reason
		changed, err = transition(ctx, tx, wo, domain.StatusCancelled, userID, reason, now)
		return err
	})
	if err != nil || !changed {
		return wo, err
	}

	uc.audit.Dispatch(auditEvent(wo, userID, "work_order_cancelled", map[string]any{
		"reason": reason,
	}))

	if wo.AppointmentID != nil && uc.pub != nil {
		if err := uc.pub.Publish(ctx, events.WorkCancelled{
			WorkOrderID:   wo.ID,
			AppointmentID: *wo.AppointmentID,
			ActorID:       userID,
			Reason:        reason,
			At:            now,
		}); err != nil {
			return wo, err
		}
	}
	return wo, nil
}

type TransitionWorkOrder struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewTransitionWorkOrder(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *TransitionWorkOrder {
	return &TransitionWorkOrder{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute moves the order along the matrix for edges with no side
// effects of their own: parking for parts and handing to quality check.
// Starting, completing and cancelling have their own operations.
func (uc *TransitionWorkOrder) Execute(
	ctx context.Context,
	id uint,
	to domain.Status,
	note string,
	userID *uint,
) (*models.WorkOrder, error) {

	switch to {
	case domain.StatusAwaitingParts, domain.StatusQualityCheck:
	case domain.StatusInProgress, domain.StatusCompleted, domain.StatusCancelled, domain.StatusAssigned:
		return nil, httperr.ErrBusinessf("use_dedicated_operation", "moving to %s has its own operation", to)
	default:
		return nil, httperr.ErrBusinessf("invalid_status", "unknown work order status %q", string(to))
	}

	now := uc.clock.Now()
	var (
		wo      *models.WorkOrder
		from    domain.Status
		changed bool
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}
		from = domain.Status(wo.Status)
		changed, err = transition(ctx, tx, wo, to, userID, note, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.audit.Dispatch(auditEvent(wo, userID, "work_order_status_changed", map[string]any{
			"from": string(from),
			"to":   string(to),
		}))
	}
	return wo, nil
}
