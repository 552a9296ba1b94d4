package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app/apptest"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	uc "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

func key(s string) *string { return &s }

func TestIssue_IdempotencyKeyReturnsFirstIntent(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	c, _ := f.Customer()

	in := uc.IssueIntentInput{
		CustomerID:     c.ID,
		Amount:         decimal.RequireFromString("120.005"),
		IdempotencyKey: key("checkout-1"),
		Provider:       "sandbox",
	}
	first, err := f.C.IssueIntent.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, string(domain.IntentPending), first.Status)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("120.01")))
	assert.Contains(t, first.PaymentURL, "/sandbox/pay?")
	assert.True(t, apptest.Start.Add(f.Cfg.IntentTTL).Equal(first.ExpiresAt))

	second, err := f.C.IssueIntent.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, _ := f.Customer()
	in.CustomerID = other.ID
	_, err = f.C.IssueIntent.Execute(ctx, in)
	assert.True(t, httperr.IsBusiness(err, "idempotency_key_conflict"))
}

func TestIssue_Validation(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	c, _ := f.Customer()

	_, err := f.C.IssueIntent.Execute(ctx, uc.IssueIntentInput{CustomerID: c.ID, Amount: decimal.Zero, Provider: "sandbox"})
	assert.True(t, errors.Is(err, domain.ErrNothingToPay))

	_, err = f.C.IssueIntent.Execute(ctx, uc.IssueIntentInput{CustomerID: c.ID, Amount: decimal.NewFromInt(5), Provider: "paypal"})
	assert.True(t, httperr.IsBusiness(err, "unknown_provider"))
}

func TestIssue_GatewayDownFailsIntent(t *testing.T) {
	f := apptest.New(t)
	c, _ := f.Customer()
	f.Sandbox.FailWith(errors.New("connection refused"), nil)

	_, err := f.C.IssueIntent.Execute(context.Background(), uc.IssueIntentInput{
		CustomerID: c.ID, Amount: decimal.NewFromInt(40), Provider: "sandbox",
	})
	be, ok := httperr.AsBusiness(err)
	require.True(t, ok)
	assert.Equal(t, "gateway_unavailable", be.Code)
	assert.True(t, be.Retryable)

	var pi models.PaymentIntent
	require.NoError(t, f.DB.Where("customer_id = ?", c.ID).First(&pi).Error)
	assert.Equal(t, string(domain.IntentFailed), pi.Status)
	assert.Contains(t, pi.FailureReason, "connection refused")
}

func TestCallback_DuplicateAndConflicting(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b := f.Book(f.Service("Oil change", "50.00", 30))

	pi, err := f.C.PrePayment.Execute(ctx, uc.PrePaymentInput{AppointmentID: b.Appointment.ID, Provider: "sandbox"})
	require.NoError(t, err)
	assert.True(t, pi.Amount.Equal(decimal.NewFromInt(50)))

	fields, sig := f.Callback(pi, "50.00", true)

	// a tampered signature is rejected before anything is read
	_, err = f.C.HandleCallback.Execute(ctx, "sandbox", fields, "deadbeef")
	assert.True(t, httperr.IsBusiness(err, "invalid_signature"))

	got, err := f.C.HandleCallback.Execute(ctx, "sandbox", fields, sig)
	require.NoError(t, err)
	assert.Equal(t, string(domain.IntentCompleted), got.Status)

	// redelivery is a no-op
	again, err := f.C.HandleCallback.Execute(ctx, "sandbox", fields, sig)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.True(t, again.CapturedAmount.Equal(decimal.NewFromInt(50)))

	ap := f.Reload(b.Appointment)
	assert.True(t, ap.PaidAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, string(apptDomain.PaymentCompleted), ap.PaymentStatus)

	// a late failure for a completed intent is refused
	failFields, failSig := f.Callback(pi, "50.00", false)
	_, err = f.C.HandleCallback.Execute(ctx, "sandbox", failFields, failSig)
	assert.True(t, errors.Is(err, domain.ErrIntentTerminal))

	_, err = f.C.PrePayment.Execute(ctx, uc.PrePaymentInput{AppointmentID: b.Appointment.ID, Provider: "sandbox"})
	assert.True(t, httperr.IsBusiness(err, "already_paid"))
}

func TestCallback_CaptureAfterCancellationIsRefunded(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b := f.Book(f.Service("Oil change", "50.00", 30))

	// GIVEN an intent issued while the booking was live
	pi, err := f.C.PrePayment.Execute(ctx, uc.PrePaymentInput{AppointmentID: b.Appointment.ID, Provider: "sandbox"})
	require.NoError(t, err)

	// AND the booking is cancelled before the money arrives
	_, err = f.C.CancelAppointment.Execute(ctx, ucAppointment.CancelAppointmentInput{
		ID: b.Appointment.ID, Reason: "no longer needed", Actor: apptDomain.Customer(b.Customer.ID),
	})
	require.NoError(t, err)

	// WHEN the capture callback lands
	fields, sig := f.Callback(pi, "50.00", true)
	_, err = f.C.HandleCallback.Execute(ctx, "sandbox", fields, sig)
	require.NoError(t, err)

	// THEN the money goes straight back
	refunds := f.Sandbox.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, pi.Code, refunds[0].IntentCode)
	assert.True(t, refunds[0].Amount.Equal(decimal.NewFromInt(50)))

	var intent models.PaymentIntent
	require.NoError(t, f.DB.First(&intent, pi.ID).Error)
	assert.True(t, intent.RefundedAmount.Equal(decimal.NewFromInt(50)))
}

func TestRequestRefund_Bounds(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b := f.Book(f.Service("Brake check", "80.00", 45))
	pi := f.PayInFull(b.Appointment)

	_, err := f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{IntentID: pi.ID, Amount: decimal.NewFromInt(10)})
	assert.True(t, httperr.IsBusiness(err, "idempotency_key_required"))

	first, err := f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{
		IntentID: pi.ID, Amount: decimal.NewFromInt(60), IdempotencyKey: "r-1", Reason: "goodwill",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.RefundPending), first.Status)

	// the same key returns the same refund
	same, err := f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{
		IntentID: pi.ID, Amount: decimal.NewFromInt(60), IdempotencyKey: "r-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	// open refunds count against what is left
	_, err = f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{
		IntentID: pi.ID, Amount: decimal.NewFromInt(30), IdempotencyKey: "r-2",
	})
	assert.True(t, errors.Is(err, domain.ErrRefundTooLarge))

	_, err = f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{
		IntentID: pi.ID, Amount: decimal.NewFromInt(20), IdempotencyKey: "r-3",
	})
	assert.NoError(t, err)
}

func TestProcessRefund_FailureIsRetried(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b := f.Book(f.Service("Oil change", "50.00", 30))
	pi := f.PayInFull(b.Appointment)

	rf, err := f.C.RequestRefund.Execute(ctx, uc.RequestRefundInput{
		IntentID: pi.ID, Amount: decimal.NewFromInt(20), IdempotencyKey: "partial-1",
	})
	require.NoError(t, err)

	// GIVEN the gateway rejects the first attempt
	f.Sandbox.FailWith(nil, errors.New("gateway timeout"))
	err = f.C.ProcessRefund.Execute(ctx, rf.ID)
	be, ok := httperr.AsBusiness(err)
	require.True(t, ok)
	assert.True(t, be.Retryable)

	var stored models.Refund
	require.NoError(t, f.DB.First(&stored, rf.ID).Error)
	assert.Equal(t, string(domain.RefundFailed), stored.Status)
	assert.Equal(t, "gateway timeout", stored.FailureReason)

	// WHEN it is retried with the gateway back
	f.Sandbox.FailWith(nil, nil)
	require.NoError(t, f.C.ProcessRefund.Execute(ctx, rf.ID))

	// THEN it completes once; processing again is a no-op
	require.NoError(t, f.C.ProcessRefund.Execute(ctx, rf.ID))
	require.NoError(t, f.DB.First(&stored, rf.ID).Error)
	assert.Equal(t, string(domain.RefundCompleted), stored.Status)
	assert.NotEmpty(t, stored.GatewayRef)
	assert.Len(t, f.Sandbox.Refunds(), 1)

	var intent models.PaymentIntent
	require.NoError(t, f.DB.First(&intent, pi.ID).Error)
	assert.True(t, intent.RefundedAmount.Equal(decimal.NewFromInt(20)))
}

func TestExpireIntent(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	c, _ := f.Customer()

	pi, err := f.C.IssueIntent.Execute(ctx, uc.IssueIntentInput{CustomerID: c.ID, Amount: decimal.NewFromInt(30), Provider: "sandbox"})
	require.NoError(t, err)

	expired, err := f.C.ExpireIntent.Execute(ctx, pi.ID)
	require.NoError(t, err)
	assert.False(t, expired, "not due yet")

	f.Clock.Advance(f.Cfg.IntentTTL + time.Second)
	expired, err = f.C.ExpireIntent.Execute(ctx, pi.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	// a callback arriving after expiry cannot resurrect it
	fields, sig := f.Callback(pi, "30.00", true)
	_, err = f.C.HandleCallback.Execute(ctx, "sandbox", fields, sig)
	assert.True(t, httperr.IsBusiness(err, "intent_already_terminal"))
}

func TestGetIntent_ScopedToCustomer(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	c, _ := f.Customer()
	pi, err := f.C.IssueIntent.Execute(ctx, uc.IssueIntentInput{CustomerID: c.ID, Amount: decimal.NewFromInt(30), Provider: "sandbox"})
	require.NoError(t, err)

	_, err = f.C.GetIntent.Execute(ctx, pi.ID, &c.ID)
	assert.NoError(t, err)

	stranger := c.ID + 99
	_, err = f.C.GetIntent.Execute(ctx, pi.ID, &stranger)
	assert.True(t, httperr.IsNotFound(err))
}

func TestPrePayment_NothingToPayOnZeroEstimate(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN a booking whose only service is free
	b := f.Book(f.Service("Safety inspection", "0.00", 15))
	require.True(t, b.Appointment.EstimatedCost.IsZero())
	assert.Equal(t, string(apptDomain.PaymentNotRequired), b.Appointment.PaymentStatus)

	// WHEN a pre-payment is requested
	_, err := f.C.PrePayment.Execute(ctx, uc.PrePaymentInput{AppointmentID: b.Appointment.ID, Provider: "sandbox"})

	// THEN it is refused and no intent is opened
	assert.True(t, httperr.IsBusiness(err, "nothing_to_pay"))
	assert.ErrorIs(t, err, domain.ErrNothingToPay)

	var intents int64
	require.NoError(t, f.DB.Model(&models.PaymentIntent{}).Where("appointment_id = ?", b.Appointment.ID).Count(&intents).Error)
	assert.Zero(t, intents)
}
