package payment

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

var tracer = otel.Tracer("github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment")

// KeyCache short-circuits idempotency-key lookups. The store stays
// authoritative; a miss or an error falls through to it.
type KeyCache interface {
	Lookup(ctx context.Context, key string) (uint, bool, error)
	Remember(ctx context.Context, key string, id uint) error
}

func sumCaptured(intents []models.PaymentIntent) decimal.Decimal {
	total := decimal.Zero
	for _, pi := range intents {
		total = total.Add(pi.CapturedAmount)
	}
	return total.Round(2)
}

// resync recomputes the appointment's paid amount from its completed
// intents inside tx. It returns the locked appointment and whether it changed.
func resync(
	ctx context.Context,
	tx domain.Repository,
	appointmentID uint,
	now time.Time,
) (*models.Appointment, bool, error) {

	ap, err := tx.LockAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	intents, err := tx.ListCompletedIntents(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}

	if !apptDomain.ApplyPayment(ap, sumCaptured(intents), now) {
		return ap, false, nil
	}
	ap.UpdatedAt = now
	if err := tx.UpdateAppointmentPayment(ctx, ap); err != nil {
		return nil, false, err
	}
	return ap, true, nil
}

// holdsRefundableMoney reports appointments that can no longer consume
// what was paid for them.
func holdsRefundableMoney(ap *models.Appointment) bool {
	return apptDomain.Status(ap.Status) == apptDomain.StatusCancelled && ap.PaidAmount.IsPositive()
}

func publish(ctx context.Context, pub events.Publisher, key string, pi *models.PaymentIntent, reason string, now time.Time) {
	if pub == nil {
		return
	}
	err := pub.Publish(ctx, events.PaymentChanged{
		RoutingKey:    key,
		IntentID:      pi.ID,
		IntentCode:    pi.Code,
		AppointmentID: pi.AppointmentID,
		Amount:        pi.Amount,
		Status:        pi.Status,
		Reason:        reason,
		At:            now,
	})
	if err != nil {
		log.Printf("[payment] publish %s for %s: %v", key, pi.Code, err)
	}
}

func auditIntent(pi *models.PaymentIntent, userID *uint, action string, meta any) audit.Event {
	return audit.Event{
		UserID:   userID,
		Action:   action,
		Entity:   "payment_intent",
		EntityID: &pi.ID,
		Metadata: meta,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
