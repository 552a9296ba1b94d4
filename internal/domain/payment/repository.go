package payment

import (
	"context"
	"time"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type Repository interface {
	WithTx(
		ctx context.Context,
		fn func(tx Repository) error,
	) error

	// -------- Intent --------
	IntentCodeExists(ctx context.Context, code string) (bool, error)

	// CreateIntent inserts the intent and, when it belongs to an
	// appointment, points the appointment at it.
	CreateIntent(ctx context.Context, pi *models.PaymentIntent) error

	// FindIntentByIdempotencyKey returns nil, nil when the key is unused.
	FindIntentByIdempotencyKey(ctx context.Context, key string) (*models.PaymentIntent, error)

	GetIntent(ctx context.Context, id uint) (*models.PaymentIntent, error)
	LockIntent(ctx context.Context, id uint) (*models.PaymentIntent, error)
	LockIntentByCode(ctx context.Context, code string) (*models.PaymentIntent, error)
	UpdateIntent(ctx context.Context, pi *models.PaymentIntent) error

	ListCompletedIntents(ctx context.Context, appointmentID uint) ([]models.PaymentIntent, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error)

	// -------- Appointment (payment fields only) --------
	LockAppointment(ctx context.Context, id uint) (*models.Appointment, error)
	UpdateAppointmentPayment(ctx context.Context, ap *models.Appointment) error

	// -------- Refund --------
	FindRefundByKey(ctx context.Context, key string) (*models.Refund, error)
	CreateRefund(ctx context.Context, r *models.Refund) error
	LockRefund(ctx context.Context, id uint) (*models.Refund, error)
	UpdateRefund(ctx context.Context, r *models.Refund) error
	ListOpenRefunds(ctx context.Context, intentID uint) ([]models.Refund, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]models.Refund, error)
	// ListStaleRefunds returns Processing refunds last touched before
	// claimedBefore, oldest first.
	ListStaleRefunds(ctx context.Context, claimedBefore time.Time, limit int) ([]models.Refund, error)
}
