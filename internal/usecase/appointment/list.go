package appointment

import (
	"context"
	"time"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/dto"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

type GetAppointment struct {
	repo domain.Repository
}

func NewGetAppointment(repo domain.Repository) *GetAppointment {
	return &GetAppointment{repo: repo}
}

// Execute loads one appointment; a non-nil customerID restricts it to
// that customer's own bookings.
func (uc *GetAppointment) Execute(
	ctx context.Context,
	id uint,
	customerID *uint,
) (*models.Appointment, error) {

	ap, err := uc.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(ap, customerID); err != nil {
		return nil, err
	}
	return ap, nil
}

type ListAppointments struct {
	repo domain.Repository
}

func NewListAppointments(repo domain.Repository) *ListAppointments {
	return &ListAppointments{repo: repo}
}

func (uc *ListAppointments) ForCustomer(
	ctx context.Context,
	customerID uint,
) ([]dto.AppointmentListDTO, error) {
	return uc.list(ctx, domain.ListFilter{CustomerID: customerID})
}

// ForDay lists a service center's appointments whose slot starts on the
// given calendar day in loc.
func (uc *ListAppointments) ForDay(
	ctx context.Context,
	serviceCenterID uint,
	date time.Time,
	loc *time.Location,
) ([]dto.AppointmentListDTO, error) {

	start, end := timezone.DayBounds(date, loc)
	return uc.list(ctx, domain.ListFilter{
		ServiceCenterID: serviceCenterID,
		From:            start,
		To:              end,
	})
}

func (uc *ListAppointments) list(
	ctx context.Context,
	f domain.ListFilter,
) ([]dto.AppointmentListDTO, error) {

	rows, err := uc.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]dto.AppointmentListDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.AppointmentListDTO{
			ID:            r.ID,
			Code:          r.Code,
			StartsAt:      r.StartsAt,
			Status:        r.Status,
			StatusName:    domain.Status(r.Status).String(),
			PaymentStatus: r.PaymentStatus,
			EstimatedCost: r.EstimatedCost,
			PaidAmount:    r.PaidAmount,
			Plate:         r.Plate,
		})
	}
	return out, nil
}
