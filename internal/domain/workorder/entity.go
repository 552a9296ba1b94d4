package workorder

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// Transition applies a matrix-checked status change and stamps times.
func Transition(wo *models.WorkOrder, to Status, now time.Time) (bool, error) {
	noop, err := CanTransition(Status(wo.Status), to)
	if err != nil || noop {
		return false, err
	}

	wo.Status = string(to)
	switch to {
	case StatusInProgress:
		if wo.StartedAt == nil {
			wo.StartedAt = &now
		}
	case StatusCompleted:
		wo.CompletedAt = &now
	case StatusCancelled:
		wo.CancelledAt = &now
	}
	return true, nil
}

// EnsureLinesEditable rejects line changes once work is under review or closed.
func EnsureLinesEditable(wo *models.WorkOrder) error {
	switch Status(wo.Status) {
	case StatusCreated, StatusAssigned, StatusInProgress, StatusAwaitingParts:
		return nil
	}
	return httperr.ErrBusinessf("invalid_state", "work order is %s; lines are frozen", Status(wo.Status))
}

// Recompute derives every total from the line items.
func Recompute(wo *models.WorkOrder, taxRate decimal.Decimal) {
	services := decimal.Zero
	for _, s := range wo.Services {
		if s.Status == ServiceCancelled {
			continue
		}
		services = services.Add(s.Price)
	}

	parts := decimal.Zero
	for _, p := range wo.Parts {
		if p.Status == PartReturned {
			continue
		}
		parts = parts.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}

	wo.ServiceTotal = services.Round(2)
	wo.PartTotal = parts.Round(2)
	wo.Subtotal = wo.ServiceTotal.Add(wo.PartTotal)
	wo.TaxAmount = wo.Subtotal.Mul(taxRate).Round(2)
	wo.Total = wo.Subtotal.Add(wo.TaxAmount)
}

// FinalizeLines flips every live line to its terminal sub-status.
func FinalizeLines(wo *models.WorkOrder) {
	for i := range wo.Services {
		if wo.Services[i].Status != ServiceCancelled {
			wo.Services[i].Status = ServiceCompleted
		}
	}
	for i := range wo.Parts {
		if wo.Parts[i].Status != PartReturned {
			wo.Parts[i].Status = PartInstalled
		}
	}
}

func CancelLines(wo *models.WorkOrder) {
	for i := range wo.Services {
		if wo.Services[i].Status != ServiceCompleted {
			wo.Services[i].Status = ServiceCancelled
		}
	}
	for i := range wo.Parts {
		if wo.Parts[i].Status == PartReserved {
			wo.Parts[i].Status = PartReturned
		}
	}
}

// EnsureApproved blocks completion while added parts await the customer.
func EnsureApproved(wo *models.WorkOrder) error {
	if wo.RequiresApproval && wo.ApprovedAt == nil {
		return httperr.ErrBusiness("customer_approval_required")
	}
	return nil
}

func Approve(wo *models.WorkOrder, now time.Time) {
	wo.ApprovedAt = &now
	for i := range wo.Parts {
		wo.Parts[i].NeedsApproval = false
	}
}

// ===============================
// Checklist
// ===============================

func RefreshChecklist(wo *models.WorkOrder) {
	wo.ChecklistTotal = len(wo.Checklist)
	wo.ChecklistCompleted = 0
	wo.ChecklistRequired = 0
	wo.ChecklistRequiredCompleted = 0
	for _, it := range wo.Checklist {
		if it.Completed {
			wo.ChecklistCompleted++
		}
		if it.Required {
			wo.ChecklistRequired++
			if it.Completed {
				wo.ChecklistRequiredCompleted++
			}
		}
	}
}

func MissingRequired(items []models.ChecklistItem) []string {
	var missing []string
	for _, it := range items {
		if it.Required && !it.Completed {
			missing = append(missing, it.Title)
		}
	}
	return missing
}

func EnsureChecklistDone(wo *models.WorkOrder) error {
	missing := MissingRequired(wo.Checklist)
	if len(missing) == 0 {
		return nil
	}
	return httperr.ErrBusinessf(
		"checklist_incomplete",
		"required checklist items not completed: %s", strings.Join(missing, ", "),
	)
}
