package workorder

import (
	"context"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type AssignTechnician struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewAssignTechnician(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *AssignTechnician {
	return &AssignTechnician{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute sets the technician. A Created order moves to Assigned; an
// order already under way is simply handed over.
func (uc *AssignTechnician) Execute(
	ctx context.Context,
	id uint,
	technicianID uint,
	userID *uint,
) (*models.WorkOrder, error) {

	if technicianID == 0 {
		return nil, httperr.ErrBusiness("technician_required")
	}

	now := uc.clock.Now()
	var wo *models.WorkOrder

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}
		if domain.Status(wo.Status).IsTerminal() || domain.Status(wo.Status) == domain.StatusQualityCheck {
			return httperr.ErrBusinessf("invalid_state", "cannot assign a technician while %s", domain.Status(wo.Status))
		}

		previous := wo.TechnicianID
		wo.TechnicianID = &technicianID

		if domain.Status(wo.Status) == domain.StatusCreated {
			_, err := transition(ctx, tx, wo, domain.StatusAssigned, userID, "technician assigned", now)
			return err
		}

		wo.UpdatedAt = now
		if err := tx.Update(ctx, wo); err != nil {
			return err
		}
		return addTimeline(ctx, tx, wo, timelineEntry{
			Kind:    "technician_changed",
			Message: "technician reassigned",
			ActorID: userID,
			Payload: map[string]any{"from": previous, "to": technicianID},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(wo, userID, "work_order_assigned", map[string]any{
		"technician_id": technicianID,
	}))
	return wo, nil
}

type StartWork struct {
	repo   domain.Repository
	shifts domain.ShiftChecker
	audit  *audit.Dispatcher
	clock  timezone.Clock
	pub    events.Publisher
}

func NewStartWork(
	repo domain.Repository,
	shifts domain.ShiftChecker,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	pub events.Publisher,
) *StartWork {
	return &StartWork{
		repo:   repo,
		shifts: shifts,
		audit:  audit,
		clock:  clock,
		pub:    pub,
	}
}

// Execute starts (or resumes) work. The assigned technician must be on
// shift right now.
func (uc *StartWork) Execute(ctx context.Context, id uint, userID *uint) (*models.WorkOrder, error) {
	now := uc.clock.Now()

	current, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.TechnicianID == nil {
		return nil, httperr.ErrBusiness("technician_not_assigned")
	}
	techID := *current.TechnicianID

	onShift, err := uc.shifts.IsOnShift(ctx, techID, now)
	if err != nil {
		return nil, err
	}
	if !onShift {
		return nil, httperr.ErrBusinessf("technician_not_on_shift", "technician %d is not on shift", techID)
	}

	var (
		wo      *models.WorkOrder
		changed bool
	)
	err = uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}
		if wo.TechnicianID == nil || *wo.TechnicianID != techID {
			return httperr.ErrRetryable("technician_changed", "technician was reassigned; retry")
		}
		changed, err = transition(ctx, tx, wo, domain.StatusInProgress, userID, "work started", now)
		return err
	})
	if err != nil {
		return wo, err
	}

	if changed {
		uc.audit.Dispatch(auditEvent(wo, userID, "work_order_started", map[string]any{
			"technician_id": techID,
		}))
	}

	// A retry on an order already in progress re-sends the trigger so an
	// appointment that missed it catches up; the subscriber is idempotent.
	if wo.AppointmentID != nil && uc.pub != nil {
		if err := uc.pub.Publish(ctx, events.WorkStarted{
			WorkOrderID:   wo.ID,
			AppointmentID: *wo.AppointmentID,
			TechnicianID:  techID,
			At:            now,
		}); err != nil {
			return wo, err
		}
	}
	return wo, nil
}
