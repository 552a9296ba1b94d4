package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// PaymentView pairs an appointment's stored payment fields with the sum
// of captures of its completed intents.
type PaymentView struct {
	AppointmentID uint
	PaidAmount    decimal.Decimal
	PaymentStatus string
	Captured      decimal.Decimal
}

type Repository interface {
	// -------- Sweep candidates --------
	ListStaleBookings(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error)
	ListPaymentViews(ctx context.Context) ([]PaymentView, error)
	ListPaidCancellations(ctx context.Context, cancelledAfter time.Time, limit int) ([]PaymentView, error)

	// -------- Report --------
	CountAppointmentsByStatus(ctx context.Context) (map[int]int64, error)
	CountAppointmentsCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountAutoCancelled(ctx context.Context, from, to time.Time) (int64, error)
	CountIntentsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error)
	SumCaptured(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	CountRefundsByStatus(ctx context.Context) (map[string]int64, error)
	SumRefunds(ctx context.Context, statuses []string) (decimal.Decimal, error)
	CountStaleRefunds(ctx context.Context, createdBefore time.Time) (int64, error)

	// -------- Runs / reports --------
	SaveRun(ctx context.Context, run *models.ReconciliationRun) error
	FindReport(ctx context.Context, date string) (*models.ReconciliationReport, error)
	SaveReport(ctx context.Context, rep *models.ReconciliationReport) error
}
