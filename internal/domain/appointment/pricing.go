package appointment

import (
	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type LineSource string

const (
	SourceRegular      LineSource = "regular"
	SourceSubscription LineSource = "subscription"
	SourceExtra        LineSource = "extra"
)

// PriceFor returns the model override when present, else the base values.
func PriceFor(svc models.Service, override *models.ModelServicePrice) (decimal.Decimal, int) {
	price := svc.BasePrice
	duration := svc.DurationMin

	if override != nil {
		if override.Price.Valid {
			price = override.Price.Decimal
		}
		if override.DurationMin != nil {
			duration = *override.DurationMin
		}
	}
	return price.Round(2), duration
}

// BuildLines prices the requested services. Services with remaining
// subscription quota become zero-priced subscription lines; the rest get
// fallback as their source.
func BuildLines(
	services []models.Service,
	overrides map[uint]models.ModelServicePrice,
	remaining map[uint]int,
	fallback LineSource,
) []models.AppointmentService {

	lines := make([]models.AppointmentService, 0, len(services))
	for _, svc := range services {
		var ov *models.ModelServicePrice
		if o, ok := overrides[svc.ID]; ok {
			ov = &o
		}
		price, duration := PriceFor(svc, ov)

		source := fallback
		if remaining[svc.ID] > 0 {
			remaining[svc.ID]--
			source = SourceSubscription
			price = decimal.Zero
		}

		lines = append(lines, models.AppointmentService{
			ServiceID:   svc.ID,
			Name:        svc.Name,
			Source:      string(source),
			Price:       price,
			DurationMin: duration,
		})
	}
	return lines
}

func Totals(lines []models.AppointmentService) (decimal.Decimal, int) {
	cost := decimal.Zero
	duration := 0
	for _, l := range lines {
		cost = cost.Add(l.Price)
		duration += l.DurationMin
	}
	return cost.Round(2), duration
}

// CloneLines copies service lines for a rescheduled sibling.
func CloneLines(lines []models.AppointmentService) []models.AppointmentService {
	out := make([]models.AppointmentService, len(lines))
	for i, l := range lines {
		l.ID = 0
		l.AppointmentID = 0
		out[i] = l
	}
	return out
}
