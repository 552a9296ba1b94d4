package models

import "time"

// User is a login account. Customers carry CustomerID; advisors,
// technicians and managers belong to a service center instead.
type User struct {
	ID              uint  `gorm:"primaryKey" json:"id"`
	ServiceCenterID uint  `gorm:"index" json:"service_center_id"`
	CustomerID      *uint `gorm:"index" json:"customer_id"`

	Name         string `gorm:"size:100;not null" json:"name"`
	Email        string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Phone        string `gorm:"size:20" json:"phone"`
	Role         string `gorm:"size:20;default:'customer'" json:"role"`
	Active       bool   `gorm:"not null;default:true" json:"active"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
