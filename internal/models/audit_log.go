package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ServiceCenterID uint   `gorm:"index" json:"service_center_id"`
	UserID          *uint  `json:"user_id"`
	Actor           string `gorm:"size:16;not null;default:'system';index" json:"actor"`
	Action          string `gorm:"size:50;not null;index" json:"action"`

	Entity   string         `gorm:"size:50" json:"entity"`
	EntityID *uint          `json:"entity_id"`
	Metadata datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}
