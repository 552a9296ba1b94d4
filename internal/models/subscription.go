package models

import "time"

type Subscription struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index;not null" json:"customer_id"`
	VehicleID  uint      `gorm:"index;not null" json:"vehicle_id"`
	Status     string    `gorm:"size:20;not null" json:"status"`
	ValidUntil time.Time `json:"valid_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SubscriptionQuota struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	SubscriptionID uint `gorm:"uniqueIndex:idx_quota_sub_service;not null" json:"subscription_id"`
	ServiceID      uint `gorm:"uniqueIndex:idx_quota_sub_service;not null" json:"service_id"`
	Allowed        int  `json:"allowed"`
	Used           int  `json:"used"`
}

// SubscriptionUsage is unique per appointment and service, which makes
// deduction at completion safe to repeat.
type SubscriptionUsage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"index;not null" json:"subscription_id"`
	ServiceID      uint      `gorm:"uniqueIndex:idx_usage_appt_service;not null" json:"service_id"`
	AppointmentID  uint      `gorm:"uniqueIndex:idx_usage_appt_service;not null" json:"appointment_id"`
	UsedAt         time.Time `json:"used_at"`
}
