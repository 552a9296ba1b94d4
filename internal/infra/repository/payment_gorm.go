package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) WithTx(
	ctx context.Context,
	fn func(tx domain.Repository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PaymentGormRepository{db: tx})
	})
}

// --------------------------------------------------
// Intent
// --------------------------------------------------

func (r *PaymentGormRepository) IntentCodeExists(ctx context.Context, code string) (bool, error) {
	return exists[models.PaymentIntent](r.db.WithContext(ctx), "code = ?", code)
}

func (r *PaymentGormRepository) CreateIntent(ctx context.Context, pi *models.PaymentIntent) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(pi).Error; err != nil {
		return err
	}
	if pi.AppointmentID == nil {
		return nil
	}
	return db.Model(&models.Appointment{}).
		Where("id = ?", *pi.AppointmentID).
		UpdateColumn("payment_intent_id", pi.ID).Error
}

func (r *PaymentGormRepository) FindIntentByIdempotencyKey(
	ctx context.Context,
	key string,
) (*models.PaymentIntent, error) {
	return findOrNil[models.PaymentIntent](r.db.WithContext(ctx), "idempotency_key = ?", key)
}

func (r *PaymentGormRepository) GetIntent(ctx context.Context, id uint) (*models.PaymentIntent, error) {
	var pi models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&pi, id).Error; err != nil {
		return nil, httperr.FromStore(err, "payment_intent")
	}
	return &pi, nil
}

func (r *PaymentGormRepository) LockIntent(ctx context.Context, id uint) (*models.PaymentIntent, error) {
	var pi models.PaymentIntent
	if err := forUpdate(r.db.WithContext(ctx)).First(&pi, id).Error; err != nil {
		return nil, httperr.FromStore(err, "payment_intent")
	}
	return &pi, nil
}

func (r *PaymentGormRepository) LockIntentByCode(ctx context.Context, code string) (*models.PaymentIntent, error) {
	var pi models.PaymentIntent
	if err := forUpdate(r.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&pi).Error; err != nil {
		return nil, httperr.FromStore(err, "payment_intent")
	}
	return &pi, nil
}

func (r *PaymentGormRepository) UpdateIntent(ctx context.Context, pi *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Save(pi).Error
}

func (r *PaymentGormRepository) ListCompletedIntents(
	ctx context.Context,
	appointmentID uint,
) ([]models.PaymentIntent, error) {

	var rows []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND status = ?", appointmentID, string(domain.IntentCompleted)).
		Order("completed_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *PaymentGormRepository) ListExpiredPending(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.PaymentIntent, error) {

	var rows []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.IntentPending), now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// --------------------------------------------------
// Appointment
// --------------------------------------------------

func (r *PaymentGormRepository) LockAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	return lockAppointment(ctx, r.db, id)
}

// UpdateAppointmentPayment writes the payment columns plus the status
// fields a settled balance may move.
func (r *PaymentGormRepository) UpdateAppointmentPayment(ctx context.Context, ap *models.Appointment) error {
	return r.db.WithContext(ctx).
		Model(ap).
		Omit(clause.Associations).
		Select("paid_amount", "payment_status", "status", "completed_at", "updated_at").
		Updates(ap).Error
}

// --------------------------------------------------
// Refund
// --------------------------------------------------

func (r *PaymentGormRepository) FindRefundByKey(ctx context.Context, key string) (*models.Refund, error) {
	return findOrNil[models.Refund](r.db.WithContext(ctx), "idempotency_key = ?", key)
}

func (r *PaymentGormRepository) CreateRefund(ctx context.Context, rf *models.Refund) error {
	return r.db.WithContext(ctx).Create(rf).Error
}

func (r *PaymentGormRepository) LockRefund(ctx context.Context, id uint) (*models.Refund, error) {
	var rf models.Refund
	if err := forUpdate(r.db.WithContext(ctx)).First(&rf, id).Error; err != nil {
		return nil, httperr.FromStore(err, "refund")
	}
	return &rf, nil
}

func (r *PaymentGormRepository) UpdateRefund(ctx context.Context, rf *models.Refund) error {
	return r.db.WithContext(ctx).Save(rf).Error
}

func (r *PaymentGormRepository) ListOpenRefunds(ctx context.Context, intentID uint) ([]models.Refund, error) {
	var rows []models.Refund
	err := r.db.WithContext(ctx).
		Where("payment_intent_id = ? AND status IN ?", intentID, []string{
			string(domain.RefundPending),
			string(domain.RefundProcessing),
			string(domain.RefundFailed),
		}).
		Find(&rows).Error
	return rows, err
}

func (r *PaymentGormRepository) ListPendingRefunds(ctx context.Context, limit int) ([]models.Refund, error) {
	var rows []models.Refund
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(domain.RefundPending), string(domain.RefundFailed)}).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *PaymentGormRepository) ListStaleRefunds(ctx context.Context, claimedBefore time.Time, limit int) ([]models.Refund, error) {
	var rows []models.Refund
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(domain.RefundProcessing), claimedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Compile-time check
var _ domain.Repository = (*PaymentGormRepository)(nil)
