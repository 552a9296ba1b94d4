package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys, also used as topic keys on the broker.
const (
	RKAppointmentCreated     = "appointment.created"
	RKAppointmentConfirmed   = "appointment.confirmed"
	RKAppointmentCancelled   = "appointment.cancelled"
	RKAppointmentRescheduled = "appointment.rescheduled"
	RKAppointmentCheckedIn   = "appointment.checked_in"
	RKAppointmentCompleted   = "appointment.completed"
	RKAppointmentNoShow      = "appointment.no_show"

	RKPaymentCompleted = "payment.completed"
	RKPaymentFailed    = "payment.failed"
	RKPaymentExpired   = "payment.expired"
	RKRefundCompleted  = "payment.refund_completed"

	RKWorkStarted   = "workorder.started"
	RKWorkCompleted = "workorder.completed"
	RKWorkCancelled = "workorder.cancelled"
)

type Event interface {
	Key() string
}

type AppointmentChanged struct {
	RoutingKey    string    `json:"-"`
	AppointmentID uint      `json:"appointment_id"`
	Code          string    `json:"code"`
	CustomerID    uint      `json:"customer_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

func (e AppointmentChanged) Key() string { return e.RoutingKey }

type PaymentChanged struct {
	RoutingKey    string          `json:"-"`
	IntentID      uint            `json:"intent_id"`
	IntentCode    string          `json:"intent_code"`
	AppointmentID *uint           `json:"appointment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	At            time.Time       `json:"at"`
}

func (e PaymentChanged) Key() string { return e.RoutingKey }

type WorkStarted struct {
	WorkOrderID   uint      `json:"work_order_id"`
	AppointmentID uint      `json:"appointment_id"`
	TechnicianID  uint      `json:"technician_id"`
	At            time.Time `json:"at"`
}

func (WorkStarted) Key() string { return RKWorkStarted }

// WorkCompleted is published only after the completion unit of work commits.
type WorkCompleted struct {
	WorkOrderID   uint            `json:"work_order_id"`
	AppointmentID uint            `json:"appointment_id"`
	InvoiceID     uint            `json:"invoice_id"`
	FinalCost     decimal.Decimal `json:"final_cost"`
	At            time.Time       `json:"at"`
}

func (WorkCompleted) Key() string { return RKWorkCompleted }

type WorkCancelled struct {
	WorkOrderID   uint      `json:"work_order_id"`
	AppointmentID uint      `json:"appointment_id"`
	ActorID       *uint     `json:"actor_id,omitempty"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

func (WorkCancelled) Key() string { return RKWorkCancelled }
