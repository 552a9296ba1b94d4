package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Appointment struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:24;uniqueIndex;not null" json:"code"`

	CustomerID      uint `gorm:"index;not null" json:"customer_id"`
	VehicleID       uint `gorm:"index;not null" json:"vehicle_id"`
	ServiceCenterID uint `gorm:"index;not null" json:"service_center_id"`
	SlotID          uint `gorm:"index;not null" json:"slot_id"`

	Status int `gorm:"not null;index" json:"status"`

	EstimatedCost        decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"estimated_cost"`
	EstimatedDurationMin int                 `json:"estimated_duration_min"`
	FinalCost            decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"final_cost"`

	PaymentStatus   string          `gorm:"size:20;not null;index" json:"payment_status"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"paid_amount"`
	PaymentIntentID *uint           `json:"payment_intent_id"`

	SubscriptionID    *uint `json:"subscription_id"`
	RescheduledFromID *uint `gorm:"index" json:"rescheduled_from_id"`
	RescheduledToID   *uint `json:"rescheduled_to_id"`

	CancellationReason string `gorm:"size:255" json:"cancellation_reason"`
	Notes              string `gorm:"size:500" json:"notes"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
	CheckedInAt *time.Time `json:"checked_in_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	NoShowAt    *time.Time `json:"no_show_at"`

	CreatedBy   *uint `json:"created_by"`
	UpdatedBy   *uint `json:"updated_by"`
	CancelledBy *uint `json:"cancelled_by"`

	Services []AppointmentService `gorm:"foreignKey:AppointmentID" json:"services"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppointmentService is a priced line, snapshotted at booking time.
type AppointmentService struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AppointmentID uint            `gorm:"index;not null" json:"appointment_id"`
	ServiceID     uint            `gorm:"not null" json:"service_id"`
	Name          string          `gorm:"size:100" json:"name"`
	Source        string          `gorm:"size:20;not null" json:"source"`
	Price         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	DurationMin   int             `json:"duration_min"`
}
