package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

type WorkOrderGormRepository struct {
	db *gorm.DB
}

func NewWorkOrderGormRepository(db *gorm.DB) *WorkOrderGormRepository {
	return &WorkOrderGormRepository{db: db}
}

func (r *WorkOrderGormRepository) WithTx(
	ctx context.Context,
	fn func(tx domain.Repository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&WorkOrderGormRepository{db: tx})
	})
}

func preloadLines(db *gorm.DB) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }
	return db.
		Preload("Services", byID).
		Preload("Parts", byID).
		Preload("Checklist", byID)
}

// --------------------------------------------------
// Work order
// --------------------------------------------------

func (r *WorkOrderGormRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return exists[models.WorkOrder](r.db.WithContext(ctx), "code = ?", code)
}

func (r *WorkOrderGormRepository) Create(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *WorkOrderGormRepository) Get(ctx context.Context, id uint) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := preloadLines(r.db.WithContext(ctx)).First(&wo, id).Error; err != nil {
		return nil, httperr.FromStore(err, "work_order")
	}
	return &wo, nil
}

func (r *WorkOrderGormRepository) Lock(ctx context.Context, id uint) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := preloadLines(forUpdate(r.db.WithContext(ctx))).First(&wo, id).Error; err != nil {
		return nil, httperr.FromStore(err, "work_order")
	}
	return &wo, nil
}

func (r *WorkOrderGormRepository) LockAppointmentStatus(ctx context.Context, appointmentID uint) (int, error) {
	var ap models.Appointment
	if err := forUpdate(r.db.WithContext(ctx)).
		Select("id", "status").
		First(&ap, appointmentID).Error; err != nil {
		return 0, httperr.FromStore(err, "appointment")
	}
	return ap.Status, nil
}

func (r *WorkOrderGormRepository) Update(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(wo).Error
}

func (r *WorkOrderGormRepository) SaveServices(ctx context.Context, lines []models.WorkOrderService) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(&lines).Error
}

func (r *WorkOrderGormRepository) SaveParts(ctx context.Context, parts []models.WorkOrderPart) error {
	if len(parts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(&parts).Error
}

func (r *WorkOrderGormRepository) AddPart(ctx context.Context, part *models.WorkOrderPart) error {
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *WorkOrderGormRepository) SaveChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// --------------------------------------------------
// Catalog
// --------------------------------------------------

func (r *WorkOrderGormRepository) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	return getVehicle(ctx, r.db, id)
}

// UpdateVehicleMileage only ever moves the odometer forward.
func (r *WorkOrderGormRepository) UpdateVehicleMileage(ctx context.Context, vehicleID uint, mileage int) error {
	return r.db.WithContext(ctx).
		Model(&models.Vehicle{}).
		Where("id = ? AND mileage < ?", vehicleID, mileage).
		UpdateColumn("mileage", mileage).Error
}

func (r *WorkOrderGormRepository) ListServices(ctx context.Context, ids []uint) ([]models.Service, error) {
	return listActiveServices(ctx, r.db, ids)
}

func (r *WorkOrderGormRepository) ListChecklistTemplates(
	ctx context.Context,
	serviceIDs []uint,
) ([]models.ChecklistTemplate, error) {
	return listChecklistTemplates(ctx, r.db, serviceIDs)
}

// --------------------------------------------------
// Billing
// --------------------------------------------------

func (r *WorkOrderGormRepository) AppointmentPaid(ctx context.Context, appointmentID uint) (decimal.Decimal, error) {
	return sumCaptured(ctx, r.db, appointmentID)
}

func (r *WorkOrderGormRepository) FindInvoice(ctx context.Context, workOrderID uint) (*models.Invoice, error) {
	return findOrNil[models.Invoice](r.db.WithContext(ctx), "work_order_id = ?", workOrderID)
}

func (r *WorkOrderGormRepository) CountInvoicesIssued(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("issued_at >= ? AND issued_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

func (r *WorkOrderGormRepository) InvoiceCodeExists(ctx context.Context, code string) (bool, error) {
	return exists[models.Invoice](r.db.WithContext(ctx), "code = ?", code)
}

func (r *WorkOrderGormRepository) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

func (r *WorkOrderGormRepository) FindHistory(ctx context.Context, workOrderID uint) (*models.MaintenanceHistory, error) {
	return findOrNil[models.MaintenanceHistory](r.db.WithContext(ctx), "work_order_id = ?", workOrderID)
}

func (r *WorkOrderGormRepository) SaveHistory(ctx context.Context, h *models.MaintenanceHistory) error {
	return r.db.WithContext(ctx).Save(h).Error
}

func (r *WorkOrderGormRepository) AddTimeline(ctx context.Context, ev *models.WorkOrderTimeline) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

// Compile-time check
var _ domain.Repository = (*WorkOrderGormRepository)(nil)
