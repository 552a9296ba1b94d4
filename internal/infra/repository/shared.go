package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// Helpers shared by the per-aggregate repositories. Each takes the
// *gorm.DB so it runs inside whatever transaction the caller holds.

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// findOrNil is for lookups where absence is normal. Find with a limit
// instead of First keeps gorm from logging "record not found".
func findOrNil[T any](db *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	res := db.Where(query, args...).Order("id ASC").Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

func exists[T any](db *gorm.DB, query string, args ...any) (bool, error) {
	var count int64
	if err := db.Model(new(T)).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func lockAppointment(ctx context.Context, db *gorm.DB, id uint) (*models.Appointment, error) {
	var ap models.Appointment
	if err := forUpdate(db.WithContext(ctx)).First(&ap, id).Error; err != nil {
		return nil, httperr.FromStore(err, "appointment")
	}
	var lines []models.AppointmentService
	if err := db.WithContext(ctx).
		Where("appointment_id = ?", id).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	ap.Services = lines
	return &ap, nil
}

// sumCaptured adds captures of completed intents. Summed in Go so the
// decimal arithmetic is identical on every driver.
func sumCaptured(ctx context.Context, db *gorm.DB, appointmentID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("appointment_id = ? AND status = ?", appointmentID, string(payment.IntentCompleted)).
		Pluck("captured_amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(2), nil
}

// listActiveServices returns services in the order of ids and fails when
// any id is unknown or inactive.
func listActiveServices(ctx context.Context, db *gorm.DB, ids []uint) ([]models.Service, error) {
	if len(ids) == 0 {
		return nil, httperr.ErrBusiness("no_services")
	}
	var rows []models.Service
	if err := db.WithContext(ctx).
		Where("id IN ? AND active = ?", ids, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Service, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	out := make([]models.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, httperr.ErrBusinessf("service_not_found", "service %d is unknown or inactive", id)
		}
		out = append(out, s)
	}
	return out, nil
}

func listChecklistTemplates(ctx context.Context, db *gorm.DB, serviceIDs []uint) ([]models.ChecklistTemplate, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	var rows []models.ChecklistTemplate
	err := db.WithContext(ctx).
		Where("service_id IN ?", serviceIDs).
		Order("service_id ASC").
		Find(&rows).Error
	return rows, err
}

func getVehicle(ctx context.Context, db *gorm.DB, id uint) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, httperr.FromStore(err, "vehicle")
	}
	return &v, nil
}
