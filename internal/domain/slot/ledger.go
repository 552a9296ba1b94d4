// Package slot holds the capacity rule for bookable time slots.
//
// Occupancy is never stored. It is the live count of appointments that
// reference the slot in a status that still holds capacity, so releasing a
// slot is just the appointment leaving that status set.
package slot

import (
	"context"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
)

type Occupancy struct {
	SlotID      uint `json:"slot_id"`
	MaxBookings int  `json:"max_bookings"`
	Active      int  `json:"active"`
	Available   int  `json:"available"`
	Open        bool `json:"open"`
}

// Ledger admits bookings against slot capacity. TryReserve must run in the
// same transaction as the appointment insert it guards.
type Ledger interface {
	TryReserve(ctx context.Context, slotID uint) (bool, error)
	Occupancy(ctx context.Context, slotID uint) (*Occupancy, error)
}

// Admit is the capacity rule: strictly fewer live bookings than capacity.
func Admit(active, maxBookings int) bool {
	return maxBookings > 0 && active < maxBookings
}

func ErrSlotFull() error {
	return httperr.BusinessError{
		Code:      "slot_full",
		Message:   "slot is full or not bookable",
		Retryable: true,
	}
}
