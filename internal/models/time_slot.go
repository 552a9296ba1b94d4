package models

import "time"

type TimeSlot struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ServiceCenterID uint      `gorm:"index;not null" json:"service_center_id"`
	StartsAt        time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt          time.Time `gorm:"not null" json:"ends_at"`
	MaxBookings     int       `gorm:"not null;default:1" json:"max_bookings"`
	Active          bool      `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TechnicianShift is one attendance window for a technician.
type TechnicianShift struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TechnicianID uint      `gorm:"index;not null" json:"technician_id"`
	StartsAt     time.Time `gorm:"not null" json:"starts_at"`
	EndsAt       time.Time `gorm:"not null" json:"ends_at"`

	CreatedAt time.Time `json:"created_at"`
}
