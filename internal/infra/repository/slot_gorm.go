package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type SlotGormLedger struct {
	db *gorm.DB
}

func NewSlotGormLedger(db *gorm.DB) *SlotGormLedger {
	return &SlotGormLedger{db: db}
}

// TryReserve locks the slot row, so concurrent admissions for the same
// slot queue behind each other until the holder commits its insert.
func (l *SlotGormLedger) TryReserve(ctx context.Context, slotID uint) (bool, error) {
	var s models.TimeSlot
	err := forUpdate(l.db.WithContext(ctx)).First(&s, slotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !s.Active {
		return false, nil
	}

	active, err := l.countActive(ctx, slotID)
	if err != nil {
		return false, err
	}
	return slot.Admit(int(active), s.MaxBookings), nil
}

func (l *SlotGormLedger) Occupancy(ctx context.Context, slotID uint) (*slot.Occupancy, error) {
	var s models.TimeSlot
	if err := l.db.WithContext(ctx).First(&s, slotID).Error; err != nil {
		return nil, httperr.FromStore(err, "slot")
	}

	active, err := l.countActive(ctx, slotID)
	if err != nil {
		return nil, err
	}

	available := s.MaxBookings - int(active)
	if available < 0 {
		available = 0
	}
	return &slot.Occupancy{
		SlotID:      s.ID,
		MaxBookings: s.MaxBookings,
		Active:      int(active),
		Available:   available,
		Open:        s.Active && slot.Admit(int(active), s.MaxBookings),
	}, nil
}

func (l *SlotGormLedger) countActive(ctx context.Context, slotID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("slot_id = ? AND status IN ?", slotID, domain.OccupyingStatuses()).
		Count(&count).Error
	return count, err
}

var _ slot.Ledger = (*SlotGormLedger)(nil)
