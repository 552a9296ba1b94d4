package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/db/dbtest"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/repository"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// traceLog keeps every query error gorm would have logged.
type traceLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *traceLog) LogMode(logger.LogLevel) logger.Interface { return l }
func (l *traceLog) Info(context.Context, string, ...interface{}) {}
func (l *traceLog) Warn(context.Context, string, ...interface{}) {}
func (l *traceLog) Error(context.Context, string, ...interface{}) {}

func (l *traceLog) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *traceLog) notFound() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, err := range l.errs {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			n++
		}
	}
	return n
}

func TestOptionalLookups_AbsentIsNilWithoutNoise(t *testing.T) {
	log := &traceLog{}
	db := dbtest.Open(t).Session(&gorm.Session{Logger: log})
	ctx := context.Background()

	workOrders := repository.NewWorkOrderGormRepository(db)
	payments := repository.NewPaymentGormRepository(db)
	appointments := repository.NewAppointmentGormRepository(db)

	// GIVEN an empty database WHEN optional rows are looked up
	inv, err := workOrders.FindInvoice(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, inv)

	rf, err := payments.FindRefundByKey(ctx, "cancel:1:1")
	require.NoError(t, err)
	assert.Nil(t, rf)

	wo, err := appointments.LockWorkOrderFor(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, wo)

	// THEN absence is reported as nil and never logged as an error
	assert.Zero(t, log.notFound())
}

func TestOptionalLookups_ReturnsRowWhenPresent(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	c := &models.Customer{Name: "Lan", Phone: "0900000001"}
	require.NoError(t, db.Create(c).Error)
	pi := &models.PaymentIntent{
		Code: "PI-1", CustomerID: c.ID, Amount: decimal.NewFromInt(50), Currency: "VND", Status: "completed", Provider: "sandbox",
	}
	require.NoError(t, db.Create(pi).Error)
	require.NoError(t, db.Create(&models.Refund{
		PaymentIntentID: pi.ID, Amount: decimal.NewFromInt(5), Status: "pending", IdempotencyKey: "adjust:1:1",
	}).Error)

	rf, err := repository.NewPaymentGormRepository(db).FindRefundByKey(ctx, "adjust:1:1")
	require.NoError(t, err)
	require.NotNil(t, rf)
	assert.True(t, rf.Amount.Equal(decimal.NewFromInt(5)))
}
