package reconciliation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app/apptest"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/reconciliation"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/cache"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

type memArchive struct {
	mu   sync.Mutex
	keys []string
	fail error
}

func (m *memArchive) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	m.keys = append(m.keys, key)
	return "mem://" + key, nil
}

func TestRun_RepairsAndReports(t *testing.T) {
	archive := &memArchive{}
	f := apptest.NewWith(t, app.Integrations{Archiver: archive})
	ctx := context.Background()
	oil := f.Service("Oil change", "50.00", 30)

	// GIVEN an unpaid booking left Pending
	stale := f.Book(oil)

	// AND a paid booking whose stored amount drifted
	drifted := f.Book(oil)
	f.PayInFull(drifted.Appointment)
	require.NoError(t, f.DB.Model(&models.Appointment{}).Where("id = ?", drifted.Appointment.ID).
		Update("paid_amount", decimal.Zero).Error)

	// AND a paid booking cancelled while refunds were failing
	cancelled := f.Book(oil)
	f.PayInFull(cancelled.Appointment)
	f.Sandbox.FailWith(nil, errors.New("gateway down"))
	_, err := f.C.CancelAppointment.Execute(ctx, ucAppointment.CancelAppointmentInput{
		ID: cancelled.Appointment.ID, Reason: "moved away", Actor: apptDomain.Staff(1),
	})
	require.NoError(t, err)
	f.Sandbox.FailWith(nil, nil)

	// AND an intent nobody paid
	c, _ := f.Customer()
	abandoned, err := f.C.IssueIntent.Execute(ctx, ucPayment.IssueIntentInput{
		CustomerID: c.ID, Amount: decimal.NewFromInt(25), Provider: "sandbox",
	})
	require.NoError(t, err)

	// WHEN the sweep runs two days later
	f.Clock.Advance(49 * time.Hour)
	run, err := f.C.Reconciler.Run(ctx)
	require.NoError(t, err)

	// THEN each pass repaired its share
	assert.Equal(t, "completed", run.Status, run.Error)
	assert.Equal(t, 1, run.AutoCancelled)
	assert.Equal(t, 1, run.IntentsExpired)
	assert.Equal(t, 1, run.PaymentsResynced)
	assert.Equal(t, 1, run.RefundsDispatched)
	require.NotNil(t, run.FinishedAt)

	ap := f.Reload(stale.Appointment)
	assert.Equal(t, int(apptDomain.StatusCancelled), ap.Status)
	assert.Contains(t, ap.CancellationReason, apptDomain.AutoCancelPrefix)

	ap = f.Reload(drifted.Appointment)
	assert.True(t, ap.PaidAmount.Equal(decimal.NewFromInt(50)))

	var intent models.PaymentIntent
	require.NoError(t, f.DB.First(&intent, abandoned.ID).Error)
	assert.Equal(t, string(payDomain.IntentExpired), intent.Status)

	var refund models.Refund
	require.NoError(t, f.DB.Where("appointment_id = ?", cancelled.Appointment.ID).First(&refund).Error)
	assert.Equal(t, string(payDomain.RefundCompleted), refund.Status)
	assert.Len(t, f.Sandbox.Refunds(), 1)

	// AND the day's report is stored and archived
	rep, err := f.C.Reconciler.Report(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, "mem://reconciliation/2026-03-04.json", rep.ArchiveKey)

	var body domain.Report
	require.NoError(t, json.Unmarshal(rep.Body, &body))
	assert.EqualValues(t, 1, body.AutoCancelled)
	assert.Zero(t, body.PaymentMismatches)
	assert.NotNil(t, body.Warnings)

	// a second run repairs nothing and keeps one report per day
	again, err := f.C.Reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.AutoCancelled+again.IntentsExpired+again.PaymentsResynced+again.RefundsDispatched)

	var reports int64
	require.NoError(t, f.DB.Model(&models.ReconciliationReport{}).Count(&reports).Error)
	assert.EqualValues(t, 1, reports)
	assert.Len(t, archive.keys, 2)
}

func TestRun_ArchiveFailureDoesNotFailRun(t *testing.T) {
	f := apptest.NewWith(t, app.Integrations{Archiver: &memArchive{fail: errors.New("bucket gone")}})

	run, err := f.C.Reconciler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)

	rep, err := f.C.Reconciler.Report(context.Background(), "2026-03-02")
	require.NoError(t, err)
	assert.Empty(t, rep.ArchiveKey)
}

func TestRun_SingleSweeper(t *testing.T) {
	locker := cache.NewLocalLocker()
	f := apptest.NewWith(t, app.Integrations{Locker: locker})
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "reconciliation:sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.C.Reconciler.Run(ctx)
	be, isBusiness := httperr.AsBusiness(err)
	require.True(t, isBusiness)
	assert.Equal(t, "reconciliation_running", be.Code)
	assert.True(t, be.Retryable)

	release()
	_, err = f.C.Reconciler.Run(ctx)
	assert.NoError(t, err)
}

func TestReport_Missing(t *testing.T) {
	f := apptest.New(t)
	_, err := f.C.Reconciler.Report(context.Background(), "1999-01-01")
	assert.True(t, httperr.IsNotFound(err))
}

func TestRun_ReclaimsAbandonedRefundClaim(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN a cancelled paid booking whose refund was claimed by a
	// dispatcher that never recorded the outcome
	b := f.Book(f.Service("Oil change", "50.00", 30))
	f.PayInFull(b.Appointment)
	f.Sandbox.FailWith(nil, errors.New("gateway down"))
	_, err := f.C.CancelAppointment.Execute(ctx, ucAppointment.CancelAppointmentInput{
		ID: b.Appointment.ID, Reason: "moved away", Actor: apptDomain.Staff(1),
	})
	require.NoError(t, err)
	f.Sandbox.FailWith(nil, nil)

	var refund models.Refund
	require.NoError(t, f.DB.Where("appointment_id = ?", b.Appointment.ID).First(&refund).Error)
	require.NoError(t, f.DB.Model(&models.Refund{}).Where("id = ?", refund.ID).Updates(map[string]any{
		"status":     string(payDomain.RefundProcessing),
		"updated_at": f.Clock.Now(),
	}).Error)

	// WHEN the sweep runs while the claim is still fresh
	run, err := f.C.Reconciler.Run(ctx)
	require.NoError(t, err)

	// THEN the claim is left alone
	assert.Zero(t, run.RefundsDispatched)
	require.NoError(t, f.DB.First(&refund, refund.ID).Error)
	assert.Equal(t, string(payDomain.RefundProcessing), refund.Status)
	assert.Empty(t, f.Sandbox.Refunds())

	// WHEN it runs again once the claim is older than the stale age
	f.Clock.Advance(domain.DefaultConfig().StaleRefundAge + time.Hour)
	run, err = f.C.Reconciler.Run(ctx)
	require.NoError(t, err)

	// THEN the refund is taken over and settled exactly once
	assert.Equal(t, 1, run.RefundsDispatched)
	require.NoError(t, f.DB.First(&refund, refund.ID).Error)
	assert.Equal(t, string(payDomain.RefundCompleted), refund.Status)
	require.Len(t, f.Sandbox.Refunds(), 1)
	assert.Equal(t, refund.IdempotencyKey, f.Sandbox.Refunds()[0].RefundKey)

	var intent models.PaymentIntent
	require.NoError(t, f.DB.First(&intent, refund.PaymentIntentID).Error)
	assert.True(t, intent.RefundedAmount.Equal(refund.Amount))
}
