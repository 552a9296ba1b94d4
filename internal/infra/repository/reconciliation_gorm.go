package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/reconciliation"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type ReconciliationGormRepository struct {
	db *gorm.DB
}

func NewReconciliationGormRepository(db *gorm.DB) *ReconciliationGormRepository {
	return &ReconciliationGormRepository{db: db}
}

// --------------------------------------------------
// Sweep candidates
// --------------------------------------------------

func (r *ReconciliationGormRepository) ListStaleBookings(
	ctx context.Context,
	createdBefore time.Time,
	limit int,
) ([]uint, error) {

	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			int(apptDomain.StatusPending), string(apptDomain.PaymentPending), createdBefore.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListPaymentViews returns every appointment that has at least one
// completed intent or a non-zero stored paid amount.
func (r *ReconciliationGormRepository) ListPaymentViews(ctx context.Context) ([]domain.PaymentView, error) {
	type capture struct {
		AppointmentID uint
		Amount        decimal.Decimal
	}

	var captures []capture
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Select("appointment_id, captured_amount AS amount").
		Where("appointment_id IS NOT NULL AND status = ?", string(payDomain.IntentCompleted)).
		Scan(&captures).Error; err != nil {
		return nil, err
	}

	sums := make(map[uint]decimal.Decimal)
	for _, c := range captures {
		sums[c.AppointmentID] = sums[c.AppointmentID].Add(c.Amount)
	}

	ids := make([]uint, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}

	var rows []models.Appointment
	q := r.db.WithContext(ctx).
		Select("id", "paid_amount", "payment_status")
	if len(ids) > 0 {
		q = q.Where("paid_amount <> 0 OR id IN ?", ids)
	} else {
		q = q.Where("paid_amount <> 0")
	}
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.PaymentView, 0, len(rows))
	for _, ap := range rows {
		out = append(out, domain.PaymentView{
			AppointmentID: ap.ID,
			PaidAmount:    ap.PaidAmount,
			PaymentStatus: ap.PaymentStatus,
			Captured:      sums[ap.ID].Round(2),
		})
	}
	return out, nil
}

// ListPaidCancellations finds cancelled appointments that still hold
// refundable money.
func (r *ReconciliationGormRepository) ListPaidCancellations(
	ctx context.Context,
	cancelledAfter time.Time,
	limit int,
) ([]domain.PaymentView, error) {

	var rows []models.Appointment
	if err := r.db.WithContext(ctx).
		Select("id", "paid_amount", "payment_status").
		Where("status = ? AND paid_amount > 0 AND cancelled_at >= ?",
			int(apptDomain.StatusCancelled), cancelledAfter.UTC()).
		Where("EXISTS (SELECT 1 FROM payment_intents pi WHERE pi.appointment_id = appointments.id AND pi.status = ? AND pi.captured_amount > pi.refunded_amount)",
			string(payDomain.IntentCompleted)).
		Order("cancelled_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.PaymentView, 0, len(rows))
	for _, ap := range rows {
		out = append(out, domain.PaymentView{
			AppointmentID: ap.ID,
			PaidAmount:    ap.PaidAmount,
			PaymentStatus: ap.PaymentStatus,
		})
	}
	return out, nil
}

// --------------------------------------------------
// Report
// --------------------------------------------------

type statusCount struct {
	Status string
	Total  int64
}

func (r *ReconciliationGormRepository) CountAppointmentsByStatus(ctx context.Context) (map[int]int64, error) {
	type row struct {
		Status int
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[int]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Total
	}
	return out, nil
}

func (r *ReconciliationGormRepository) CountAppointmentsCreated(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

func (r *ReconciliationGormRepository) CountAutoCancelled(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("status = ? AND cancellation_reason LIKE ? AND cancelled_at >= ? AND cancelled_at < ?",
			int(apptDomain.StatusCancelled), apptDomain.AutoCancelPrefix+"%", from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

func (r *ReconciliationGormRepository) CountIntentsByStatus(
	ctx context.Context,
	from, to time.Time,
) (map[string]int64, error) {

	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Select("status, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}

func (r *ReconciliationGormRepository) SumCaptured(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("status = ? AND completed_at >= ? AND completed_at < ?",
			string(payDomain.IntentCompleted), from.UTC(), to.UTC()).
		Pluck("captured_amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

func (r *ReconciliationGormRepository) CountRefundsByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toCountMap(rows), nil
}

func (r *ReconciliationGormRepository) SumRefunds(ctx context.Context, statuses []string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("status IN ?", statuses).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return sum(amounts), nil
}

func (r *ReconciliationGormRepository) CountStaleRefunds(ctx context.Context, createdBefore time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("status IN ? AND created_at < ?", []string{
			string(payDomain.RefundPending),
			string(payDomain.RefundProcessing),
			string(payDomain.RefundFailed),
		}, createdBefore.UTC()).
		Count(&count).Error
	return count, err
}

// --------------------------------------------------
// Runs / reports
// --------------------------------------------------

func (r *ReconciliationGormRepository) SaveRun(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *ReconciliationGormRepository) FindReport(ctx context.Context, date string) (*models.ReconciliationReport, error) {
	return findOrNil[models.ReconciliationReport](r.db.WithContext(ctx), "report_date = ?", date)
}

func (r *ReconciliationGormRepository) SaveReport(ctx context.Context, rep *models.ReconciliationReport) error {
	return r.db.WithContext(ctx).Save(rep).Error
}

func toCountMap(rows []statusCount) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Total
	}
	return out
}

func sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(2)
}

// Compile-time check
var _ domain.Repository = (*ReconciliationGormRepository)(nil)
