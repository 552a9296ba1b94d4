package workorder

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

const maxCodeAttempts = 10

func NewCode(now time.Time, n int) string {
	return fmt.Sprintf("WO%s%04d", now.Format("20060102"), n%10000)
}

func GenerateCode(
	ctx context.Context,
	now time.Time,
	exists func(ctx context.Context, code string) (bool, error),
) (string, error) {

	for i := 0; i < maxCodeAttempts; i++ {
		code := NewCode(now, rand.IntN(10000))
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return fmt.Sprintf("WO%s%06d", now.Format("20060102"), time.Now().UnixMicro()%1000000), nil
}

type templateItem struct {
	Title    string `json:"title"`
	Required bool   `json:"required"`
}

// ParseTemplates expands checklist templates. A malformed template is
// skipped and reported; the others still apply.
func ParseTemplates(templates []models.ChecklistTemplate) ([]models.ChecklistItem, []error) {
	var (
		items []models.ChecklistItem
		errs  []error
	)
	for _, tpl := range templates {
		var raw []templateItem
		if err := json.Unmarshal(tpl.Items, &raw); err != nil {
			errs = append(errs, fmt.Errorf("checklist template for service %d: %w", tpl.ServiceID, err))
			continue
		}
		for _, r := range raw {
			if r.Title == "" {
				continue
			}
			items = append(items, models.ChecklistItem{Title: r.Title, Required: r.Required})
		}
	}
	return items, errs
}

// Draft describes the work order to open; lines come from the appointment
// for check-ins or from the request for walk-ins.
type Draft struct {
	Code            string
	AppointmentID   *uint
	ServiceCenterID uint
	CustomerID      uint
	VehicleID       uint
	AdvisorID       *uint
	MileageIn       int
	Services        []models.WorkOrderService
	Checklist       []models.ChecklistItem
}

func New(d Draft, taxRate decimal.Decimal) *models.WorkOrder {
	wo := &models.WorkOrder{
		Code:            d.Code,
		AppointmentID:   d.AppointmentID,
		ServiceCenterID: d.ServiceCenterID,
		CustomerID:      d.CustomerID,
		VehicleID:       d.VehicleID,
		AdvisorID:       d.AdvisorID,
		MileageIn:       d.MileageIn,
		Status:          string(StatusCreated),
		Services:        d.Services,
		Checklist:       d.Checklist,
	}
	for i := range wo.Services {
		wo.Services[i].Status = ServicePending
	}
	Recompute(wo, taxRate)
	RefreshChecklist(wo)
	return wo
}

// ServicesFromAppointment copies the booked lines onto the order.
func ServicesFromAppointment(lines []models.AppointmentService) []models.WorkOrderService {
	out := make([]models.WorkOrderService, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.WorkOrderService{
			ServiceID: l.ServiceID,
			Name:      l.Name,
			Source:    l.Source,
			Price:     l.Price,
			Status:    ServicePending,
		})
	}
	return out
}
