package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReconciliationRun struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	StartedAt         time.Time  `gorm:"index" json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	AutoCancelled     int        `json:"auto_cancelled"`
	IntentsExpired    int        `json:"intents_expired"`
	PaymentsResynced  int        `json:"payments_resynced"`
	RefundsDispatched int        `json:"refunds_dispatched"`
	Error             string     `gorm:"type:text" json:"error"`
}

// ReconciliationReport is the daily consistency snapshot, one per day.
type ReconciliationReport struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ReportDate  string         `gorm:"size:10;uniqueIndex;not null" json:"report_date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Body        datatypes.JSON `json:"body"`
	Warnings    datatypes.JSON `json:"warnings"`
	ArchiveKey  string         `gorm:"size:255" json:"archive_key"`
}
