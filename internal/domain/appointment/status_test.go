package appointment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

func TestCanTransition_Matrix(t *testing.T) {
	staff := Staff(7)
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRescheduled, true},
		{StatusPending, StatusCheckedIn, false},
		{StatusConfirmed, StatusCheckedIn, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusCheckedIn, StatusInProgress, true},
		{StatusCheckedIn, StatusRescheduled, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCompletedWithUnpaidBalance, true},
		{StatusCompletedWithUnpaidBalance, StatusCompleted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusConfirmed, false},
		{StatusRescheduled, StatusCancelled, false},
	}

	for _, tc := range cases {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			err := CanTransition(tc.from, tc.to, staff)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			be, ok := httperr.AsBusiness(err)
			require.True(t, ok)
			assert.Equal(t, "invalid_state", be.Code)
		})
	}
}

func TestCanTransition_StaffOnlyEdges(t *testing.T) {
	customer := Customer(3)

	for _, to := range []Status{StatusConfirmed} {
		err := CanTransition(StatusPending, to, customer)
		be, ok := httperr.AsBusiness(err)
		require.True(t, ok)
		assert.Equal(t, "staff_only", be.Code)
	}

	err := CanTransition(StatusConfirmed, StatusNoShow, customer)
	be, _ := httperr.AsBusiness(err)
	assert.Equal(t, "staff_only", be.Code)

	// customers may cancel before check-in but not after
	assert.NoError(t, CanTransition(StatusConfirmed, StatusCancelled, customer))
	err = CanTransition(StatusInProgress, StatusCancelled, customer)
	be, _ = httperr.AsBusiness(err)
	assert.Equal(t, "staff_only", be.Code)
	assert.NoError(t, CanTransition(StatusInProgress, StatusCancelled, System()))
}

func TestStatusSets(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow} {
		assert.True(t, s.IsTerminal(), s.String())
		assert.False(t, s.OccupiesSlot(), s.String())
	}
	assert.False(t, StatusCompletedWithUnpaidBalance.IsTerminal())
	assert.False(t, StatusCompletedWithUnpaidBalance.OccupiesSlot())
	assert.Len(t, OccupyingStatuses(), 4)
	assert.Equal(t, "Status(42)", Status(42).String())
}

func TestTransition_StampsTimes(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ap := &models.Appointment{Status: int(StatusPending)}

	require.NoError(t, Transition(ap, StatusConfirmed, Staff(1), now))
	require.NotNil(t, ap.ConfirmedAt)

	require.NoError(t, Cancel(ap, Staff(1), "customer called", now))
	assert.Equal(t, int(StatusCancelled), ap.Status)
	assert.Equal(t, "customer called", ap.CancellationReason)
	require.NotNil(t, ap.CancelledBy)
	assert.Equal(t, uint(1), *ap.CancelledBy)
}

func TestMarkNoShow_RespectsGrace(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ap := &models.Appointment{Status: int(StatusConfirmed)}

	err := MarkNoShow(ap, start, 15*time.Minute, Staff(1), start.Add(10*time.Minute))
	be, ok := httperr.AsBusiness(err)
	require.True(t, ok)
	assert.Equal(t, "grace_period_not_elapsed", be.Code)

	require.NoError(t, MarkNoShow(ap, start, 15*time.Minute, Staff(1), start.Add(15*time.Minute)))
	assert.Equal(t, int(StatusNoShow), ap.Status)
	assert.NotNil(t, ap.NoShowAt)
}

func TestEnsureEditableAndDeletable(t *testing.T) {
	assert.NoError(t, EnsureEditable(&models.Appointment{Status: int(StatusConfirmed)}))
	assert.Error(t, EnsureEditable(&models.Appointment{Status: int(StatusCheckedIn)}))
	assert.NoError(t, EnsureDeletable(&models.Appointment{Status: int(StatusPending)}))
	assert.Error(t, EnsureDeletable(&models.Appointment{Status: int(StatusConfirmed)}))
}

func TestPaymentStatusFor(t *testing.T) {
	d := decimal.RequireFromString
	assert.Equal(t, PaymentNotRequired, PaymentStatusFor(decimal.Zero, decimal.Zero))
	assert.Equal(t, PaymentPending, PaymentStatusFor(d("100"), d("40")))
	assert.Equal(t, PaymentCompleted, PaymentStatusFor(d("100"), d("100")))
	assert.Equal(t, PaymentCompleted, PaymentStatusFor(d("100"), d("120")))
}

func TestApplyPayment_ClosesUnpaidBalance(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	ap := &models.Appointment{
		Status:        int(StatusCompletedWithUnpaidBalance),
		EstimatedCost: decimal.NewFromInt(100),
		FinalCost:     decimal.NewNullDecimal(decimal.NewFromInt(150)),
		PaidAmount:    decimal.NewFromInt(100),
		PaymentStatus: string(PaymentPending),
	}

	changed := ApplyPayment(ap, decimal.NewFromInt(120), now)
	assert.True(t, changed)
	assert.Equal(t, int(StatusCompletedWithUnpaidBalance), ap.Status)
	assert.Equal(t, string(PaymentPending), ap.PaymentStatus)

	changed = ApplyPayment(ap, decimal.NewFromInt(150), now)
	assert.True(t, changed)
	assert.Equal(t, int(StatusCompleted), ap.Status)
	assert.Equal(t, string(PaymentCompleted), ap.PaymentStatus)

	assert.False(t, ApplyPayment(ap, decimal.NewFromInt(150), now), "same amount is a no-op")
}

func TestSettle(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("fully paid", func(t *testing.T) {
		ap := &models.Appointment{Status: int(StatusInProgress), EstimatedCost: decimal.NewFromInt(80)}
		require.NoError(t, Settle(ap, decimal.NewFromInt(80), decimal.NewFromInt(80), now))
		assert.Equal(t, int(StatusCompleted), ap.Status)
		assert.True(t, Overpaid(ap).IsZero())
	})

	t.Run("balance left", func(t *testing.T) {
		ap := &models.Appointment{Status: int(StatusInProgress), EstimatedCost: decimal.NewFromInt(80)}
		require.NoError(t, Settle(ap, decimal.NewFromInt(110), decimal.NewFromInt(80), now))
		assert.Equal(t, int(StatusCompletedWithUnpaidBalance), ap.Status)
		assert.Equal(t, string(PaymentPending), ap.PaymentStatus)
		assert.NotNil(t, ap.CompletedAt)
	})

	t.Run("overpaid", func(t *testing.T) {
		ap := &models.Appointment{Status: int(StatusInProgress), EstimatedCost: decimal.NewFromInt(80)}
		require.NoError(t, Settle(ap, decimal.NewFromInt(60), decimal.NewFromInt(80), now))
		assert.Equal(t, int(StatusCompleted), ap.Status)
		assert.True(t, Overpaid(ap).Equal(decimal.NewFromInt(20)))
	})
}
