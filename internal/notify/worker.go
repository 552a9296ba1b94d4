package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
)

// Bindings are the routing keys the notifier listens to.
var Bindings = []string{"appointment.*", "payment.*", "workorder.*"}

type Worker struct {
	notifier Notifier
}

func NewWorker(n Notifier) *Worker {
	return &Worker{notifier: n}
}

func decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// Run acks handled deliveries and requeues failed ones until ctx ends
// or the channel closes.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := w.Handle(d.RoutingKey, d.Body); err != nil {
				log.Printf("[notify] handle key=%s err=%v -> nack&requeue", d.RoutingKey, err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle turns one event into one notification. Unknown keys are skipped.
func (w *Worker) Handle(key string, body []byte) error {
	switch {
	case strings.HasPrefix(key, "appointment."):
		ev, err := decode[events.AppointmentChanged](body)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Appointment %s is now %s.", ev.Code, ev.Status)
		if ev.Reason != "" {
			msg += " Reason: " + ev.Reason
		}
		return w.notifier.Notify(appointmentSubject(key), msg)

	case key == events.RKRefundCompleted:
		ev, err := decode[events.PaymentChanged](body)
		if err != nil {
			return err
		}
		return w.notifier.Notify("Refund completed",
			fmt.Sprintf("A refund of %s for payment %s has been sent.", ev.Amount.StringFixed(2), ev.IntentCode))

	case strings.HasPrefix(key, "payment."):
		ev, err := decode[events.PaymentChanged](body)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Payment %s (%s) is %s.", ev.IntentCode, ev.Amount.StringFixed(2), ev.Status)
		if ev.Reason != "" {
			msg += " " + ev.Reason
		}
		return w.notifier.Notify("Payment update", msg)

	case key == events.RKWorkCompleted:
		ev, err := decode[events.WorkCompleted](body)
		if err != nil {
			return err
		}
		return w.notifier.Notify("Vehicle ready",
			fmt.Sprintf("Work order %d is complete. Total %s.", ev.WorkOrderID, ev.FinalCost.StringFixed(2)))

	case key == events.RKWorkStarted:
		ev, err := decode[events.WorkStarted](body)
		if err != nil {
			return err
		}
		return w.notifier.Notify("Work started", fmt.Sprintf("Work order %d is in progress.", ev.WorkOrderID))

	case key == events.RKWorkCancelled:
		ev, err := decode[events.WorkCancelled](body)
		if err != nil {
			return err
		}
		return w.notifier.Notify("Work cancelled", fmt.Sprintf("Work order %d was cancelled: %s", ev.WorkOrderID, ev.Reason))
	}

	log.Printf("[notify] skip unknown key=%s", key)
	return nil
}

func appointmentSubject(key string) string {
	switch key {
	case events.RKAppointmentCreated:
		return "Booking received"
	case events.RKAppointmentConfirmed:
		return "Booking confirmed"
	case events.RKAppointmentCancelled:
		return "Booking cancelled"
	case events.RKAppointmentRescheduled:
		return "Booking rescheduled"
	case events.RKAppointmentCheckedIn:
		return "Vehicle checked in"
	case events.RKAppointmentCompleted:
		return "Service completed"
	case events.RKAppointmentNoShow:
		return "Missed appointment"
	}
	return "Appointment update"
}
