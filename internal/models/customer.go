package models

import "time"

type Customer struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:100;not null" json:"name"`
	Phone string `gorm:"size:20;index" json:"phone"`
	Email string `gorm:"size:100" json:"email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VehicleModel struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Brand string `gorm:"size:50;not null" json:"brand"`
	Name  string `gorm:"size:100;not null" json:"name"`
}

type Vehicle struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	CustomerID     uint   `gorm:"index;not null" json:"customer_id"`
	VehicleModelID uint   `gorm:"index;not null" json:"vehicle_model_id"`
	Plate          string `gorm:"size:20;uniqueIndex;not null" json:"plate"`
	Mileage        int    `json:"mileage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
