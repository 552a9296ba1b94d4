package workorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type Repository interface {
	WithTx(
		ctx context.Context,
		fn func(tx Repository) error,
	) error

	// -------- Work order --------
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, wo *models.WorkOrder) error
	Get(ctx context.Context, id uint) (*models.WorkOrder, error)

	// Lock loads the order FOR UPDATE together with its lines and checklist.
	Lock(ctx context.Context, id uint) (*models.WorkOrder, error)
	Update(ctx context.Context, wo *models.WorkOrder) error
	SaveServices(ctx context.Context, lines []models.WorkOrderService) error
	SaveParts(ctx context.Context, parts []models.WorkOrderPart) error
	AddPart(ctx context.Context, part *models.WorkOrderPart) error
	SaveChecklistItem(ctx context.Context, item *models.ChecklistItem) error

	// -------- Catalog --------
	GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error)
	UpdateVehicleMileage(ctx context.Context, vehicleID uint, mileage int) error
	ListServices(ctx context.Context, ids []uint) ([]models.Service, error)
	ListChecklistTemplates(ctx context.Context, serviceIDs []uint) ([]models.ChecklistTemplate, error)

	// LockAppointmentStatus locks the linked appointment row and returns
	// its status. Callers take it before Lock, in the same order as an
	// appointment cancellation does.
	LockAppointmentStatus(ctx context.Context, appointmentID uint) (int, error)

	// -------- Billing --------
	AppointmentPaid(ctx context.Context, appointmentID uint) (decimal.Decimal, error)

	// FindInvoice returns nil, nil when the order has no invoice yet.
	FindInvoice(ctx context.Context, workOrderID uint) (*models.Invoice, error)
	CountInvoicesIssued(ctx context.Context, from, to time.Time) (int64, error)
	InvoiceCodeExists(ctx context.Context, code string) (bool, error)
	SaveInvoice(ctx context.Context, inv *models.Invoice) error

	// FindHistory returns nil, nil when none exists for the order.
	FindHistory(ctx context.Context, workOrderID uint) (*models.MaintenanceHistory, error)
	SaveHistory(ctx context.Context, h *models.MaintenanceHistory) error

	AddTimeline(ctx context.Context, ev *models.WorkOrderTimeline) error
}

// ShiftChecker answers whether a technician is on shift at a moment.
type ShiftChecker interface {
	IsOnShift(ctx context.Context, technicianID uint, at time.Time) (bool, error)
}
