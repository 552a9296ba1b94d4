package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentIntent struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:32;uniqueIndex;not null" json:"code"`

	CustomerID    uint  `gorm:"index;not null" json:"customer_id"`
	AppointmentID *uint `gorm:"index" json:"appointment_id"`

	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CapturedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"captured_amount"`
	RefundedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"refunded_amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`

	Status         string    `gorm:"size:20;not null;index" json:"status"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`
	IdempotencyKey *string   `gorm:"size:100;uniqueIndex" json:"idempotency_key,omitempty"`

	Provider      string `gorm:"size:30" json:"provider"`
	GatewayTxID   string `gorm:"size:100" json:"gateway_tx_id"`
	PaymentURL    string `gorm:"size:500" json:"payment_url"`
	FailureReason string `gorm:"size:255" json:"failure_reason"`

	CompletedAt *time.Time `json:"completed_at"`
	FailedAt    *time.Time `json:"failed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	ExpiredAt   *time.Time `json:"expired_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Refund struct {
	ID              uint  `gorm:"primaryKey" json:"id"`
	AppointmentID   *uint `gorm:"index" json:"appointment_id"`
	PaymentIntentID uint  `gorm:"index;not null" json:"payment_intent_id"`

	Amount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Status         string          `gorm:"size:20;not null;index" json:"status"`
	Reason         string          `gorm:"size:255" json:"reason"`
	IdempotencyKey string          `gorm:"size:100;uniqueIndex;not null" json:"idempotency_key"`
	GatewayRef     string          `gorm:"size:100" json:"gateway_ref"`
	FailureReason  string          `gorm:"size:255" json:"failure_reason"`

	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
