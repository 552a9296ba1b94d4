package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Description string          `gorm:"size:255" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"base_price"`
	DurationMin int             `json:"duration_min"`
	Active      bool            `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelServicePrice overrides price and/or duration for one vehicle model.
type ModelServicePrice struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	ServiceID      uint                `gorm:"uniqueIndex:idx_model_service;not null" json:"service_id"`
	VehicleModelID uint                `gorm:"uniqueIndex:idx_model_service;not null" json:"vehicle_model_id"`
	Price          decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"price"`
	DurationMin    *int                `json:"duration_min"`
}
