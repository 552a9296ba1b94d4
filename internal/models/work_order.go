package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type WorkOrder struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:24;uniqueIndex;not null" json:"code"`

	// One work order per appointment; walk-ins leave it nil.
	AppointmentID   *uint `gorm:"uniqueIndex" json:"appointment_id"`
	ServiceCenterID uint  `gorm:"index;not null" json:"service_center_id"`
	CustomerID      uint  `gorm:"index;not null" json:"customer_id"`
	VehicleID       uint  `gorm:"index;not null" json:"vehicle_id"`
	TechnicianID    *uint `gorm:"index" json:"technician_id"`
	AdvisorID       *uint `json:"advisor_id"`

	Status string `gorm:"size:20;not null;index" json:"status"`

	ServiceTotal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"service_total"`
	PartTotal    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"part_total"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	Total        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`

	ChecklistTotal             int `json:"checklist_total"`
	ChecklistCompleted         int `json:"checklist_completed"`
	ChecklistRequired          int `json:"checklist_required"`
	ChecklistRequiredCompleted int `json:"checklist_required_completed"`

	RequiresApproval bool       `json:"requires_approval"`
	ApprovedAt       *time.Time `json:"approved_at"`

	MileageIn          int        `json:"mileage_in"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancellationReason string     `gorm:"size:255" json:"cancellation_reason"`

	Services  []WorkOrderService `gorm:"foreignKey:WorkOrderID" json:"services"`
	Parts     []WorkOrderPart    `gorm:"foreignKey:WorkOrderID" json:"parts"`
	Checklist []ChecklistItem    `gorm:"foreignKey:WorkOrderID" json:"checklist"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WorkOrderService struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	WorkOrderID uint            `gorm:"index;not null" json:"work_order_id"`
	ServiceID   uint            `json:"service_id"`
	Name        string          `gorm:"size:100" json:"name"`
	Source      string          `gorm:"size:20" json:"source"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Status      string          `gorm:"size:20;not null" json:"status"`
}

type WorkOrderPart struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	WorkOrderID   uint            `gorm:"index;not null" json:"work_order_id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	SKU           string          `gorm:"size:50" json:"sku"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Status        string          `gorm:"size:20;not null" json:"status"`
	NeedsApproval bool            `json:"needs_approval"`
}

type ChecklistItem struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	WorkOrderID uint       `gorm:"index;not null" json:"work_order_id"`
	Title       string     `gorm:"size:150;not null" json:"title"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *uint      `json:"completed_by"`
}

// ChecklistTemplate holds the raw item list for one service, as JSON.
type ChecklistTemplate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ServiceID uint           `gorm:"uniqueIndex;not null" json:"service_id"`
	Items     datatypes.JSON `json:"items"`
}

type Invoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"size:24;uniqueIndex;not null" json:"code"`
	WorkOrderID   uint            `gorm:"uniqueIndex;not null" json:"work_order_id"`
	AppointmentID *uint           `gorm:"index" json:"appointment_id"`
	CustomerID    uint            `gorm:"index;not null" json:"customer_id"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	Total         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	PrepaidAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"prepaid_amount"`
	AmountDue     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_due"`
	Status        string          `gorm:"size:20;not null" json:"status"`
	IssuedAt      time.Time       `gorm:"index" json:"issued_at"`
}

type MaintenanceHistory struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	VehicleID          uint            `gorm:"index;not null" json:"vehicle_id"`
	WorkOrderID        uint            `gorm:"uniqueIndex;not null" json:"work_order_id"`
	AppointmentID      *uint           `json:"appointment_id"`
	ServiceDate        time.Time       `json:"service_date"`
	Mileage            int             `json:"mileage"`
	NextServiceMileage int             `json:"next_service_mileage"`
	NextServiceDate    time.Time       `json:"next_service_date"`
	Summary            string          `gorm:"size:500" json:"summary"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WorkOrderTimeline struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	WorkOrderID uint           `gorm:"index;not null" json:"work_order_id"`
	Kind        string         `gorm:"size:40;not null" json:"kind"`
	FromStatus  string         `gorm:"size:20" json:"from_status"`
	ToStatus    string         `gorm:"size:20" json:"to_status"`
	Message     string         `gorm:"size:255" json:"message"`
	ActorID     *uint          `json:"actor_id"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}
