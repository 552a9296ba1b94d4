package workorder

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type AddPartInput struct {
	WorkOrderID uint
	Name        string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	UserID      *uint
}

type AddPart struct {
	repo    domain.Repository
	audit   *audit.Dispatcher
	clock   timezone.Clock
	taxRate decimal.Decimal
}

func NewAddPart(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	taxRate decimal.Decimal,
) *AddPart {
	return &AddPart{
		repo:    repo,
		audit:   audit,
		clock:   clock,
		taxRate: taxRate,
	}
}

// Execute reserves a part on the order. Parts added once work has
// started need the customer's approval before completion.
func (uc *AddPart) Execute(ctx context.Context, in AddPartInput) (*models.WorkOrder, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, httperr.ErrBusiness("part_name_required")
	}
	if in.Quantity <= 0 {
		return nil, httperr.ErrBusiness("invalid_quantity")
	}
	if in.UnitPrice.IsNegative() {
		return nil, httperr.ErrBusiness("invalid_price")
	}

	now := uc.clock.Now()
	var (
		wo   *models.WorkOrder
		part *models.WorkOrderPart
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, in.WorkOrderID); err != nil {
			return err
		}
		if err := domain.EnsureLinesEditable(wo); err != nil {
			return err
		}

		part = &models.WorkOrderPart{
			WorkOrderID:   wo.ID,
			Name:          name,
			SKU:           in.SKU,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice.Round(2),
			Status:        domain.PartReserved,
			NeedsApproval: wo.StartedAt != nil,
		}
		if err := tx.AddPart(ctx, part); err != nil {
			return err
		}
		wo.Parts = append(wo.Parts, *part)

		if part.NeedsApproval {
			wo.RequiresApproval = true
			wo.ApprovedAt = nil
		}
		domain.Recompute(wo, uc.taxRate)
		wo.UpdatedAt = now
		if err := tx.Update(ctx, wo); err != nil {
			return err
		}
		return addTimeline(ctx, tx, wo, timelineEntry{
			Kind:    "part_added",
			Message: name,
			ActorID: in.UserID,
			Payload: map[string]any{
				"part_id":        part.ID,
				"quantity":       part.Quantity,
				"unit_price":     part.UnitPrice.StringFixed(2),
				"needs_approval": part.NeedsApproval,
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(wo, in.UserID, "work_order_part_added", map[string]any{
		"part": part.Name,
		"qty":  part.Quantity,
	}))
	return wo, nil
}

type ApproveExtras struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewApproveExtras(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *ApproveExtras {
	return &ApproveExtras{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

// Execute records the customer's approval of parts added mid-job. A
// non-nil customerID must own the order.
func (uc *ApproveExtras) Execute(
	ctx context.Context,
	id uint,
	customerID *uint,
	userID *uint,
) (*models.WorkOrder, error) {

	now := uc.clock.Now()
	var wo *models.WorkOrder

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, id); err != nil {
			return err
		}
		if customerID != nil && wo.CustomerID != *customerID {
			return httperr.ErrNotFound("work_order")
		}
		if domain.Status(wo.Status).IsTerminal() {
			return httperr.ErrBusinessf("invalid_state", "work order is %s", domain.Status(wo.Status))
		}
		if !wo.RequiresApproval || wo.ApprovedAt != nil {
			return httperr.ErrBusiness("nothing_to_approve")
		}

		domain.Approve(wo, now)
		if err := tx.SaveParts(ctx, wo.Parts); err != nil {
			return err
		}
		wo.UpdatedAt = now
		if err := tx.Update(ctx, wo); err != nil {
			return err
		}
		return addTimeline(ctx, tx, wo, timelineEntry{
			Kind:    "extras_approved",
			Message: "customer approved additional parts",
			ActorID: userID,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(wo, userID, "work_order_extras_approved", nil))
	return wo, nil
}

type CompleteChecklistItem struct {
	repo  domain.Repository
	audit *audit.Dispatcher
	clock timezone.Clock
}

func NewCompleteChecklistItem(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
) *CompleteChecklistItem {
	return &CompleteChecklistItem{
		repo:  repo,
		audit: audit,
		clock: clock,
	}
}

func (uc *CompleteChecklistItem) Execute(
	ctx context.Context,
	workOrderID uint,
	itemID uint,
	userID *uint,
) (*models.WorkOrder, error) {

	now := uc.clock.Now()
	var wo *models.WorkOrder

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if wo, err = tx.Lock(ctx, workOrderID); err != nil {
			return err
		}
		if domain.Status(wo.Status).IsTerminal() {
			return httperr.ErrBusinessf("invalid_state", "work order is %s", domain.Status(wo.Status))
		}

		idx := -1
		for i := range wo.Checklist {
			if wo.Checklist[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return httperr.ErrNotFound("checklist_item")
		}

		item := &wo.Checklist[idx]
		if item.Completed {
			return nil
		}
		item.Completed = true
		item.CompletedAt = &now
		item.CompletedBy = userID
		if err := tx.SaveChecklistItem(ctx, item); err != nil {
			return err
		}

		domain.RefreshChecklist(wo)
		wo.UpdatedAt = now
		if err := tx.Update(ctx, wo); err != nil {
			return err
		}
		return addTimeline(ctx, tx, wo, timelineEntry{
			Kind:    "checklist_item_completed",
			Message: item.Title,
			ActorID: userID,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditEvent(wo, userID, "checklist_item_completed", map[string]any{
		"item_id":            itemID,
		"required_completed": wo.ChecklistRequiredCompleted,
		"required":           wo.ChecklistRequired,
	}))
	return wo, nil
}
