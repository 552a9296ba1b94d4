package appointment

import (
	"fmt"
	"strings"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
)

// ===============================
// Appointment Status
// ===============================

// Status codes are stable across the API.
type Status int

const (
	StatusPending                    Status = 1
	StatusConfirmed                  Status = 2
	StatusCheckedIn                  Status = 3
	StatusInProgress                 Status = 4
	StatusCompleted                  Status = 5
	StatusCancelled                  Status = 6
	StatusRescheduled                Status = 7
	StatusNoShow                     Status = 8
	StatusCompletedWithUnpaidBalance Status = 9
)

var statusNames = map[Status]string{
	StatusPending:                    "Pending",
	StatusConfirmed:                  "Confirmed",
	StatusCheckedIn:                  "CheckedIn",
	StatusInProgress:                 "InProgress",
	StatusCompleted:                  "Completed",
	StatusCancelled:                  "Cancelled",
	StatusRescheduled:                "Rescheduled",
	StatusNoShow:                     "NoShow",
	StatusCompletedWithUnpaidBalance: "CompletedWithUnpaidBalance",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports statuses whose records are frozen.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow:
		return true
	}
	return false
}

// IsDone covers both completion outcomes.
func (s Status) IsDone() bool {
	return s == StatusCompleted || s == StatusCompletedWithUnpaidBalance
}

// OccupiesSlot reports statuses that count toward slot capacity.
func (s Status) OccupiesSlot() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusInProgress:
		return true
	}
	return false
}

func OccupyingStatuses() []int {
	return []int{
		int(StatusPending),
		int(StatusConfirmed),
		int(StatusCheckedIn),
		int(StatusInProgress),
	}
}

// ===============================
// Actors
// ===============================

type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorStaff    ActorKind = "staff"
	ActorSystem   ActorKind = "system"
)

type Actor struct {
	ID   *uint
	Kind ActorKind
}

func System() Actor { return Actor{Kind: ActorSystem} }

func Staff(id uint) Actor { return Actor{ID: &id, Kind: ActorStaff} }

func Customer(id uint) Actor { return Actor{ID: &id, Kind: ActorCustomer} }

func (a Actor) Privileged() bool {
	return a.Kind == ActorStaff || a.Kind == ActorSystem
}

// ===============================
// Transition table
// ===============================

var transitions = map[Status][]Status{
	StatusPending:                    {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed:                  {StatusCheckedIn, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusCheckedIn:                  {StatusInProgress, StatusCancelled},
	StatusInProgress:                 {StatusCompleted, StatusCompletedWithUnpaidBalance, StatusCancelled},
	StatusCompletedWithUnpaidBalance: {StatusCompleted},
}

func AllowedFrom(from Status) []Status {
	return transitions[from]
}

// CanTransition is the single gate for every appointment status change.
func CanTransition(from, to Status, actor Actor) error {
	allowed := false
	for _, s := range transitions[from] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return httperr.ErrBusinessf(
			"invalid_state",
			"cannot move appointment from %s to %s; allowed: %s",
			from, to, joinStatuses(transitions[from]),
		)
	}

	if to == StatusCancelled && (from == StatusCheckedIn || from == StatusInProgress) && !actor.Privileged() {
		return httperr.ErrBusinessf(
			"staff_only",
			"only staff can cancel an appointment that is %s", from,
		)
	}

	if to == StatusConfirmed || to == StatusCheckedIn || to == StatusNoShow {
		if !actor.Privileged() {
			return httperr.ErrBusinessf("staff_only", "only staff can move an appointment to %s", to)
		}
	}

	return nil
}

func joinStatuses(ss []Status) string {
	if len(ss) == 0 {
		return "none"
	}
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

// ===============================
// Payment status
// ===============================

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentNotRequired PaymentStatus = "not_required"
)
