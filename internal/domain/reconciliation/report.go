package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// StaleBookingWindow is how long a Pending, unpaid booking may live.
	StaleBookingWindow time.Duration
	AutoCancelWarnRate float64
	UnpaidBacklogWarn  int
	StaleRefundAge     time.Duration
	RefundLookback     time.Duration
	BatchSize          int
	Location           *time.Location
}

func DefaultConfig() Config {
	return Config{
		StaleBookingWindow: 48 * time.Hour,
		AutoCancelWarnRate: 0.2,
		UnpaidBacklogWarn:  10,
		StaleRefundAge:     24 * time.Hour,
		RefundLookback:     30 * 24 * time.Hour,
		BatchSize:          200,
		Location:           time.UTC,
	}
}

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the daily consistency snapshot. It observes; it never corrects.
type Report struct {
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`

	AppointmentsByStatus map[string]int64 `json:"appointments_by_status"`
	AppointmentsCreated  int64            `json:"appointments_created"`
	AutoCancelled        int64            `json:"auto_cancelled"`
	UnpaidBalanceBacklog int64            `json:"unpaid_balance_backlog"`

	IntentsByStatus map[string]int64 `json:"intents_by_status"`
	CapturedTotal   decimal.Decimal  `json:"captured_total"`

	RefundsByStatus    map[string]int64 `json:"refunds_by_status"`
	RefundedTotal      decimal.Decimal  `json:"refunded_total"`
	RefundPendingTotal decimal.Decimal  `json:"refund_pending_total"`
	StaleRefunds       int64            `json:"stale_refunds"`

	PaymentMismatches int `json:"payment_mismatches"`

	Warnings []Warning `json:"warnings"`
}

// Evaluate derives advisory warnings from a filled report.
func Evaluate(r *Report, cfg Config) []Warning {
	var out []Warning

	if r.AppointmentsCreated > 0 {
		rate := float64(r.AutoCancelled) / float64(r.AppointmentsCreated)
		if rate > cfg.AutoCancelWarnRate {
			out = append(out, Warning{
				Code:    "high_auto_cancel_rate",
				Message: fmt.Sprintf("%.0f%% of bookings were auto-cancelled (%d of %d)", rate*100, r.AutoCancelled, r.AppointmentsCreated),
			})
		}
	}

	if r.PaymentMismatches > 0 {
		out = append(out, Warning{
			Code:    "unresolved_payment_mismatch",
			Message: fmt.Sprintf("%d appointments still disagree with their captured payments", r.PaymentMismatches),
		})
	}

	if cfg.UnpaidBacklogWarn > 0 && r.UnpaidBalanceBacklog >= int64(cfg.UnpaidBacklogWarn) {
		out = append(out, Warning{
			Code:    "unpaid_balance_backlog",
			Message: fmt.Sprintf("%d completed appointments carry an unpaid balance", r.UnpaidBalanceBacklog),
		})
	}

	if r.StaleRefunds > 0 {
		out = append(out, Warning{
			Code:    "stale_refunds",
			Message: fmt.Sprintf("%d refunds have been open longer than %s", r.StaleRefunds, cfg.StaleRefundAge),
		})
	}

	return out
}
