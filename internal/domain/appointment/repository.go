package appointment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// Summary is one row of an appointment listing.
type Summary struct {
	ID            uint
	Code          string
	CustomerID    uint
	Status        int
	PaymentStatus string
	EstimatedCost decimal.Decimal
	PaidAmount    decimal.Decimal
	SlotID        uint
	StartsAt      time.Time
	Plate         string
}

// ListFilter narrows a listing; zero fields are ignored.
type ListFilter struct {
	ServiceCenterID uint
	CustomerID      uint
	From            time.Time
	To              time.Time
	Status          int
}

type Repository interface {
	// WithTx runs fn in one unit of work; the Repository handed to fn
	// and its Slots() ledger are bound to that transaction.
	WithTx(
		ctx context.Context,
		fn func(tx Repository) error,
	) error

	Slots() slot.Ledger

	// -------- Catalog --------
	GetVehicle(
		ctx context.Context,
		id uint,
	) (*models.Vehicle, error)

	ListServices(
		ctx context.Context,
		ids []uint,
	) ([]models.Service, error)

	ListModelPrices(
		ctx context.Context,
		vehicleModelID uint,
		serviceIDs []uint,
	) (map[uint]models.ModelServicePrice, error)

	GetSlot(
		ctx context.Context,
		id uint,
	) (*models.TimeSlot, error)

	ListSlots(
		ctx context.Context,
		serviceCenterID uint,
		from time.Time,
		to time.Time,
	) ([]models.TimeSlot, error)

	// -------- Subscription --------
	GetActiveSubscription(
		ctx context.Context,
		id uint,
		customerID uint,
		vehicleID uint,
		at time.Time,
	) (*models.Subscription, error)

	RemainingQuota(
		ctx context.Context,
		subscriptionID uint,
	) (map[uint]int, error)

	// DeductUsage consumes one unit of quota once per appointment and
	// service; a repeat call returns false without touching the quota.
	DeductUsage(
		ctx context.Context,
		subscriptionID uint,
		serviceID uint,
		appointmentID uint,
		at time.Time,
	) (bool, error)

	// -------- Appointment --------
	CodeExists(
		ctx context.Context,
		code string,
	) (bool, error)

	CreateAppointment(
		ctx context.Context,
		ap *models.Appointment,
	) error

	GetAppointment(
		ctx context.Context,
		id uint,
	) (*models.Appointment, error)

	// LockAppointment loads the row FOR UPDATE.
	LockAppointment(
		ctx context.Context,
		id uint,
	) (*models.Appointment, error)

	UpdateAppointment(
		ctx context.Context,
		ap *models.Appointment,
	) error

	ReplaceServices(
		ctx context.Context,
		appointmentID uint,
		lines []models.AppointmentService,
	) error

	DeleteAppointment(
		ctx context.Context,
		id uint,
	) error

	ListAppointments(
		ctx context.Context,
		f ListFilter,
	) ([]Summary, error)

	// -------- Work order (check-in) --------
	HasWorkOrder(
		ctx context.Context,
		appointmentID uint,
	) (bool, error)

	WorkOrderCodeExists(
		ctx context.Context,
		code string,
	) (bool, error)

	ListChecklistTemplates(
		ctx context.Context,
		serviceIDs []uint,
	) ([]models.ChecklistTemplate, error)

	CreateWorkOrder(
		ctx context.Context,
		wo *models.WorkOrder,
	) error

	// LockWorkOrderFor loads the appointment's work order FOR UPDATE with
	// its lines; nil, nil when the appointment was never checked in.
	LockWorkOrderFor(
		ctx context.Context,
		appointmentID uint,
	) (*models.WorkOrder, error)

	// CancelWorkOrder saves a cancelled order with its lines and timeline entry.
	CancelWorkOrder(
		ctx context.Context,
		wo *models.WorkOrder,
		ev *models.WorkOrderTimeline,
	) error

	// -------- Payment --------
	SumCaptured(
		ctx context.Context,
		appointmentID uint,
	) (decimal.Decimal, error)

	// MoveIntents re-points every intent of one appointment to another.
	MoveIntents(
		ctx context.Context,
		fromID uint,
		toID uint,
	) error
}
