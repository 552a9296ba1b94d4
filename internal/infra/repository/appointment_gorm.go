package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/slot"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type AppointmentGormRepository struct {
	db *gorm.DB
}

func NewAppointmentGormRepository(db *gorm.DB) *AppointmentGormRepository {
	return &AppointmentGormRepository{db: db}
}

func (r *AppointmentGormRepository) WithTx(
	ctx context.Context,
	fn func(tx domain.Repository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AppointmentGormRepository{db: tx})
	})
}

func (r *AppointmentGormRepository) Slots() slot.Ledger {
	return NewSlotGormLedger(r.db)
}

// --------------------------------------------------
// Catalog
// --------------------------------------------------

func (r *AppointmentGormRepository) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	return getVehicle(ctx, r.db, id)
}

func (r *AppointmentGormRepository) ListServices(ctx context.Context, ids []uint) ([]models.Service, error) {
	return listActiveServices(ctx, r.db, ids)
}

func (r *AppointmentGormRepository) ListModelPrices(
	ctx context.Context,
	vehicleModelID uint,
	serviceIDs []uint,
) (map[uint]models.ModelServicePrice, error) {

	var rows []models.ModelServicePrice
	if err := r.db.WithContext(ctx).
		Where("vehicle_model_id = ? AND service_id IN ?", vehicleModelID, serviceIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]models.ModelServicePrice, len(rows))
	for _, p := range rows {
		out[p.ServiceID] = p
	}
	return out, nil
}

func (r *AppointmentGormRepository) GetSlot(ctx context.Context, id uint) (*models.TimeSlot, error) {
	var s models.TimeSlot
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, httperr.FromStore(err, "slot")
	}
	return &s, nil
}

func (r *AppointmentGormRepository) ListSlots(
	ctx context.Context,
	serviceCenterID uint,
	from time.Time,
	to time.Time,
) ([]models.TimeSlot, error) {

	var rows []models.TimeSlot
	err := r.db.WithContext(ctx).
		Where("service_center_id = ? AND active = ? AND starts_at >= ? AND starts_at < ?",
			serviceCenterID, true, from.UTC(), to.UTC()).
		Order("starts_at ASC").
		Find(&rows).Error
	return rows, err
}

// --------------------------------------------------
// Subscription
// --------------------------------------------------

func (r *AppointmentGormRepository) GetActiveSubscription(
	ctx context.Context,
	id uint,
	customerID uint,
	vehicleID uint,
	at time.Time,
) (*models.Subscription, error) {

	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where(
			"id = ? AND customer_id = ? AND vehicle_id = ? AND status = ? AND valid_until > ?",
			id, customerID, vehicleID, "active", at.UTC(),
		).
		First(&sub).Error; err != nil {
		return nil, httperr.FromStore(err, "subscription")
	}
	return &sub, nil
}

func (r *AppointmentGormRepository) RemainingQuota(
	ctx context.Context,
	subscriptionID uint,
) (map[uint]int, error) {

	var quotas []models.SubscriptionQuota
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Find(&quotas).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]int, len(quotas))
	for _, q := range quotas {
		if left := q.Allowed - q.Used; left > 0 {
			out[q.ServiceID] = left
		}
	}
	return out, nil
}

func (r *AppointmentGormRepository) DeductUsage(
	ctx context.Context,
	subscriptionID uint,
	serviceID uint,
	appointmentID uint,
	at time.Time,
) (bool, error) {

	usage := models.SubscriptionUsage{
		SubscriptionID: subscriptionID,
		ServiceID:      serviceID,
		AppointmentID:  appointmentID,
		UsedAt:         at,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&usage)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&models.SubscriptionQuota{}).
		Where("subscription_id = ? AND service_id = ? AND used < allowed", subscriptionID, serviceID).
		UpdateColumn("used", gorm.Expr("used + 1")).Error; err != nil {
		return false, err
	}
	return true, nil
}

// --------------------------------------------------
// Appointment
// --------------------------------------------------

func (r *AppointmentGormRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return exists[models.Appointment](r.db.WithContext(ctx), "code = ?", code)
}

func (r *AppointmentGormRepository) CreateAppointment(ctx context.Context, ap *models.Appointment) error {
	return r.db.WithContext(ctx).Create(ap).Error
}

func (r *AppointmentGormRepository) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	var ap models.Appointment
	if err := r.db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&ap, id).Error; err != nil {
		return nil, httperr.FromStore(err, "appointment")
	}
	return &ap, nil
}

func (r *AppointmentGormRepository) LockAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	return lockAppointment(ctx, r.db, id)
}

func (r *AppointmentGormRepository) UpdateAppointment(ctx context.Context, ap *models.Appointment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(ap).Error
}

func (r *AppointmentGormRepository) ReplaceServices(
	ctx context.Context,
	appointmentID uint,
	lines []models.AppointmentService,
) error {

	if err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Delete(&models.AppointmentService{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].ID = 0
		lines[i].AppointmentID = appointmentID
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *AppointmentGormRepository) DeleteAppointment(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).
		Where("appointment_id = ?", id).
		Delete(&models.AppointmentService{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Appointment{}, id).Error
}

func (r *AppointmentGormRepository) ListAppointments(
	ctx context.Context,
	f domain.ListFilter,
) ([]domain.Summary, error) {

	q := r.db.WithContext(ctx).
		Table("appointments").
		Select(`appointments.id, appointments.code, appointments.customer_id,
			appointments.status, appointments.payment_status,
			appointments.estimated_cost, appointments.paid_amount,
			appointments.slot_id, time_slots.starts_at, vehicles.plate`).
		Joins("JOIN time_slots ON time_slots.id = appointments.slot_id").
		Joins("JOIN vehicles ON vehicles.id = appointments.vehicle_id")

	if f.ServiceCenterID != 0 {
		q = q.Where("appointments.service_center_id = ?", f.ServiceCenterID)
	}
	if f.CustomerID != 0 {
		q = q.Where("appointments.customer_id = ?", f.CustomerID)
	}
	if !f.From.IsZero() {
		q = q.Where("time_slots.starts_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("time_slots.starts_at < ?", f.To.UTC())
	}
	if f.Status != 0 {
		q = q.Where("appointments.status = ?", f.Status)
	}

	var rows []domain.Summary
	err := q.Order("time_slots.starts_at ASC, appointments.id ASC").Scan(&rows).Error
	return rows, err
}

// --------------------------------------------------
// Work order (check-in)
// --------------------------------------------------

func (r *AppointmentGormRepository) HasWorkOrder(ctx context.Context, appointmentID uint) (bool, error) {
	return exists[models.WorkOrder](r.db.WithContext(ctx), "appointment_id = ?", appointmentID)
}

func (r *AppointmentGormRepository) WorkOrderCodeExists(ctx context.Context, code string) (bool, error) {
	return exists[models.WorkOrder](r.db.WithContext(ctx), "code = ?", code)
}

func (r *AppointmentGormRepository) ListChecklistTemplates(
	ctx context.Context,
	serviceIDs []uint,
) ([]models.ChecklistTemplate, error) {
	return listChecklistTemplates(ctx, r.db, serviceIDs)
}

func (r *AppointmentGormRepository) CreateWorkOrder(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *AppointmentGormRepository) LockWorkOrderFor(ctx context.Context, appointmentID uint) (*models.WorkOrder, error) {
	return findOrNil[models.WorkOrder](
		preloadLines(forUpdate(r.db.WithContext(ctx))),
		"appointment_id = ?", appointmentID,
	)
}

func (r *AppointmentGormRepository) CancelWorkOrder(
	ctx context.Context,
	wo *models.WorkOrder,
	ev *models.WorkOrderTimeline,
) error {

	db := r.db.WithContext(ctx)
	if len(wo.Services) > 0 {
		if err := db.Save(&wo.Services).Error; err != nil {
			return err
		}
	}
	if len(wo.Parts) > 0 {
		if err := db.Save(&wo.Parts).Error; err != nil {
			return err
		}
	}
	if err := db.Omit(clause.Associations).Save(wo).Error; err != nil {
		return err
	}
	return db.Create(ev).Error
}

// --------------------------------------------------
// Payment
// --------------------------------------------------

func (r *AppointmentGormRepository) SumCaptured(ctx context.Context, appointmentID uint) (decimal.Decimal, error) {
	return sumCaptured(ctx, r.db, appointmentID)
}

func (r *AppointmentGormRepository) MoveIntents(ctx context.Context, fromID, toID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("appointment_id = ?", fromID).
		UpdateColumn("appointment_id", toID).Error
}

// Compile-time check
var _ domain.Repository = (*AppointmentGormRepository)(nil)
