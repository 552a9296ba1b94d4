package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type ShiftGormChecker struct {
	db *gorm.DB
}

func NewShiftGormChecker(db *gorm.DB) *ShiftGormChecker {
	return &ShiftGormChecker{db: db}
}

func (s *ShiftGormChecker) IsOnShift(ctx context.Context, technicianID uint, at time.Time) (bool, error) {
	return exists[models.TechnicianShift](
		s.db.WithContext(ctx),
		"technician_id = ? AND starts_at <= ? AND ends_at > ?",
		technicianID, at.UTC(), at.UTC(),
	)
}

var _ workorder.ShiftChecker = (*ShiftGormChecker)(nil)
