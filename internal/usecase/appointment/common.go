package appointment

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

var tracer = otel.Tracer("github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment")

// Refunder opens refunds for money captured against an appointment.
// Keys are "<prefix>:<appointmentID>:<intentID>", so repeats are no-ops.
type Refunder interface {
	RefundAppointment(
		ctx context.Context,
		appointmentID uint,
		amount decimal.Decimal,
		keyPrefix string,
		reason string,
	) (int, error)
}

// ensureOwner hides other customers' appointments behind a not-found.
func ensureOwner(ap *models.Appointment, customerID *uint) error {
	if customerID != nil && ap.CustomerID != *customerID {
		return httperr.ErrNotFound("appointment")
	}
	return nil
}

func ensureBookable(s *models.TimeSlot, now time.Time) error {
	if !s.Active {
		return httperr.ErrBusiness("slot_inactive")
	}
	if !s.StartsAt.After(now) {
		return httperr.ErrBusiness("slot_in_past")
	}
	return nil
}

func publish(ctx context.Context, pub events.Publisher, key string, ap *models.Appointment, now time.Time) {
	if pub == nil {
		return
	}
	err := pub.Publish(ctx, events.AppointmentChanged{
		RoutingKey:    key,
		AppointmentID: ap.ID,
		Code:          ap.Code,
		CustomerID:    ap.CustomerID,
		Status:        domain.Status(ap.Status).String(),
		Reason:        ap.CancellationReason,
		At:            now,
	})
	if err != nil {
		log.Printf("[appointment] publish %s for %s: %v", key, ap.Code, err)
	}
}

func auditEvent(ap *models.Appointment, actor domain.Actor, action string, meta any) audit.Event {
	return audit.Event{
		ServiceCenterID: ap.ServiceCenterID,
		UserID:          actor.ID,
		Actor:           string(actor.Kind),
		Action:          action,
		Entity:          "appointment",
		EntityID:        &ap.ID,
		Metadata:        meta,
	}
}

// refundAfterCommit runs outside any transaction. A failure is logged;
// the reconciliation sweep picks up cancelled appointments still holding money.
func refundAfterCommit(
	ctx context.Context,
	refunder Refunder,
	ap *models.Appointment,
	amount decimal.Decimal,
	prefix string,
	reason string,
) {
	if refunder == nil || !amount.IsPositive() {
		return
	}
	if _, err := refunder.RefundAppointment(ctx, ap.ID, amount, prefix, reason); err != nil {
		log.Printf("[appointment] refund %s for %s: %v", prefix, ap.Code, err)
	}
}
