package workorder

import (
	"errors"
	"strings"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
)

type Status string

const (
	StatusCreated       Status = "created"
	StatusAssigned      Status = "assigned"
	StatusInProgress    Status = "in_progress"
	StatusAwaitingParts Status = "awaiting_parts"
	StatusQualityCheck  Status = "quality_check"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

var displayNames = map[Status]string{
	StatusCreated:       "Created",
	StatusAssigned:      "Assigned",
	StatusInProgress:    "InProgress",
	StatusAwaitingParts: "AwaitingParts",
	StatusQualityCheck:  "QualityCheck",
	StatusCompleted:     "Completed",
	StatusCancelled:     "Cancelled",
}

func (s Status) String() string {
	if n, ok := displayNames[s]; ok {
		return n
	}
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := displayNames[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var ErrInvalidTransition = errors.New("invalid work order transition")

var matrix = map[Status][]Status{
	StatusCreated:       {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusAssigned:      {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusAwaitingParts, StatusQualityCheck, StatusCompleted, StatusCancelled},
	StatusAwaitingParts: {StatusInProgress, StatusCancelled},
	StatusQualityCheck:  {StatusInProgress, StatusCompleted},
	StatusCompleted:     {},
	StatusCancelled:     {},
}

func AllowedFrom(from Status) []Status {
	return matrix[from]
}

// CanTransition checks an edge against the matrix. A self-transition is
// allowed and reported as noop.
func CanTransition(from, to Status) (noop bool, err error) {
	if from == to && from.Valid() {
		return true, nil
	}
	for _, s := range matrix[from] {
		if s == to {
			return false, nil
		}
	}

	allowed := make([]string, 0, len(matrix[from]))
	for _, s := range matrix[from] {
		allowed = append(allowed, s.String())
	}
	list := strings.Join(allowed, ", ")
	if list == "" {
		list = "none"
	}
	return false, httperr.Wrap(
		ErrInvalidTransition,
		"invalid_transition",
		"cannot move work order from %s to %s; allowed: %s", from, to, list,
	)
}

// Line sub-statuses.
const (
	ServicePending   = "pending"
	ServiceCompleted = "completed"
	ServiceCancelled = "cancelled"

	PartReserved  = "reserved"
	PartInstalled = "installed"
	PartReturned  = "returned"
)

// Invoice statuses.
const (
	InvoiceUnpaid = "unpaid"
	InvoicePaid   = "paid"
)
