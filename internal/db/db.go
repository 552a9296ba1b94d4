package db

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

func NewDB(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DBUrl), GormConfig())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	return db
}

// GormConfig is shared by the postgres and sqlite openers.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ServiceCenter{},
		&models.Customer{},
		&models.User{},
		&models.VehicleModel{},
		&models.Vehicle{},
		&models.Service{},
		&models.ModelServicePrice{},
		&models.TimeSlot{},
		&models.TechnicianShift{},
		&models.Subscription{},
		&models.SubscriptionQuota{},
		&models.SubscriptionUsage{},
		&models.Appointment{},
		&models.AppointmentService{},
		&models.PaymentIntent{},
		&models.Refund{},
		&models.WorkOrder{},
		&models.WorkOrderService{},
		&models.WorkOrderPart{},
		&models.ChecklistItem{},
		&models.ChecklistTemplate{},
		&models.Invoice{},
		&models.MaintenanceHistory{},
		&models.WorkOrderTimeline{},
		&models.ReconciliationRun{},
		&models.ReconciliationReport{},
		&models.AuditLog{},
	)
}
