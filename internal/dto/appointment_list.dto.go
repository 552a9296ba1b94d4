package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentListDTO struct {
	ID            uint            `json:"id"`
	Code          string          `json:"code"`
	StartsAt      time.Time       `json:"starts_at"`
	Status        int             `json:"status"`
	StatusName    string          `json:"status_name"`
	PaymentStatus string          `json:"payment_status"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Plate         string          `json:"plate"`
}

type SlotAvailabilityDTO struct {
	SlotID      uint      `json:"slot_id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	MaxBookings int       `json:"max_bookings"`
	Booked      int       `json:"booked"`
	Available   int       `json:"available"`
	Open        bool      `json:"open"`
}
