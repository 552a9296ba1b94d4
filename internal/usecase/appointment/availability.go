package appointment

import (
	"context"
	"time"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/dto"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type GetAvailability struct {
	repo domain.Repository
}

func NewGetAvailability(repo domain.Repository) *GetAvailability {
	return &GetAvailability{repo: repo}
}

// Execute reports occupancy for every active slot of the day. Occupancy
// is always counted from live appointments.
func (uc *GetAvailability) Execute(
	ctx context.Context,
	serviceCenterID uint,
	date time.Time,
	loc *time.Location,
) ([]dto.SlotAvailabilityDTO, error) {

	start, end := timezone.DayBounds(date, loc)

	slots, err := uc.repo.ListSlots(ctx, serviceCenterID, start, end)
	if err != nil {
		return nil, err
	}

	ledger := uc.repo.Slots()
	out := make([]dto.SlotAvailabilityDTO, 0, len(slots))
	for _, s := range slots {
		occ, err := ledger.Occupancy(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.SlotAvailabilityDTO{
			SlotID:      s.ID,
			StartsAt:    s.StartsAt,
			EndsAt:      s.EndsAt,
			MaxBookings: occ.MaxBookings,
			Booked:      occ.Active,
			Available:   occ.Available,
			Open:        occ.Open,
		})
	}
	return out, nil
}
