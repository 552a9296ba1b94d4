package audit

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// Logger persists audit events to the audit_logs table.
type Logger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(ev Event) error {
	var meta datatypes.JSON
	if ev.Metadata != nil {
		if b, err := json.Marshal(ev.Metadata); err == nil {
			meta = datatypes.JSON(b)
		}
	}

	actor := ev.Actor
	if actor == "" {
		actor = "system"
		if ev.UserID != nil {
			actor = "staff"
		}
	}

	row := models.AuditLog{
		ServiceCenterID: ev.ServiceCenterID,
		UserID:          ev.UserID,
		Actor:           actor,
		Action:          ev.Action,
		Entity:          ev.Entity,
		EntityID:        ev.EntityID,
		Metadata:        meta,
	}

	return l.db.Create(&row).Error
}
