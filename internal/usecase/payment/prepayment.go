package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type PrePaymentInput struct {
	AppointmentID  uint
	CustomerID     *uint
	Provider       string
	IdempotencyKey *string
	UserID         *uint
}

type CreatePrePayment struct {
	repo  domain.Repository
	issue *IssueIntent
}

func NewCreatePrePayment(repo domain.Repository, issue *IssueIntent) *CreatePrePayment {
	return &CreatePrePayment{repo: repo, issue: issue}
}

// Execute issues an intent for whatever is still owed on a Pending or
// Confirmed appointment.
func (uc *CreatePrePayment) Execute(
	ctx context.Context,
	in PrePaymentInput,
) (*models.PaymentIntent, error) {

	var (
		ap  *models.Appointment
		due decimal.Decimal
	)

	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		var err error
		if ap, err = tx.LockAppointment(ctx, in.AppointmentID); err != nil {
			return err
		}
		if in.CustomerID != nil && ap.CustomerID != *in.CustomerID {
			return httperr.ErrNotFound("appointment")
		}

		switch apptDomain.Status(ap.Status) {
		case apptDomain.StatusPending, apptDomain.StatusConfirmed:
		default:
			return httperr.ErrBusinessf("invalid_state", "pre-payment is not possible while %s", apptDomain.Status(ap.Status))
		}

		if !ap.EstimatedCost.IsPositive() {
			return httperr.Wrap(domain.ErrNothingToPay, "nothing_to_pay", "appointment %s has no cost", ap.Code)
		}
		if ap.PaymentStatus == string(apptDomain.PaymentCompleted) {
			return httperr.ErrBusiness("already_paid")
		}

		intents, err := tx.ListCompletedIntents(ctx, ap.ID)
		if err != nil {
			return err
		}
		due = apptDomain.AmountDue(ap).Sub(sumCaptured(intents))
		if !due.IsPositive() {
			return httperr.Wrap(domain.ErrNothingToPay, "nothing_to_pay", "appointment %s is covered", ap.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.issue.Execute(ctx, IssueIntentInput{
		CustomerID:     ap.CustomerID,
		AppointmentID:  &ap.ID,
		Amount:         due,
		IdempotencyKey: in.IdempotencyKey,
		Provider:       in.Provider,
		OrderInfo:      fmt.Sprintf("Pre-payment for appointment %s", ap.Code),
		UserID:         in.UserID,
	})
}
