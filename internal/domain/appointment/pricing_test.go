package appointment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

func TestBuildLines_OverridesAndQuota(t *testing.T) {
	thirty := 30
	services := []models.Service{
		{ID: 1, Name: "Oil change", BasePrice: decimal.RequireFromString("50.00"), DurationMin: 20},
		{ID: 2, Name: "Brake check", BasePrice: decimal.RequireFromString("80.00"), DurationMin: 45},
		{ID: 3, Name: "Wash", BasePrice: decimal.RequireFromString("15.00"), DurationMin: 15},
	}
	overrides := map[uint]models.ModelServicePrice{
		2: {ServiceID: 2, Price: decimal.NewNullDecimal(decimal.RequireFromString("95.50")), DurationMin: &thirty},
		3: {ServiceID: 3},
	}
	remaining := map[uint]int{1: 1}

	lines := BuildLines(services, overrides, remaining, SourceRegular)
	require.Len(t, lines, 3)

	assert.Equal(t, string(SourceSubscription), lines[0].Source)
	assert.True(t, lines[0].Price.IsZero())
	assert.Equal(t, 0, remaining[1], "quota is consumed")

	assert.Equal(t, string(SourceRegular), lines[1].Source)
	assert.True(t, lines[1].Price.Equal(decimal.RequireFromString("95.50")))
	assert.Equal(t, 30, lines[1].DurationMin)

	assert.True(t, lines[2].Price.Equal(decimal.RequireFromString("15")), "empty override keeps base price")

	cost, duration := Totals(lines)
	assert.True(t, cost.Equal(decimal.RequireFromString("110.50")))
	assert.Equal(t, 65, duration)
}

func TestCloneLines_ResetsIdentity(t *testing.T) {
	in := []models.AppointmentService{{ID: 9, AppointmentID: 4, ServiceID: 1, Price: decimal.NewFromInt(10)}}
	out := CloneLines(in)
	assert.Zero(t, out[0].ID)
	assert.Zero(t, out[0].AppointmentID)
	assert.Equal(t, uint(9), in[0].ID)
}

func TestGenerateCode(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "APT202603020042", NewCode(now, 42))

	calls := 0
	code, err := GenerateCode(context.Background(), now, func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.HasPrefix(code, "APT20260302"))

	code, err = GenerateCode(context.Background(), now, func(context.Context, string) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, len("APT20260302")+6, "falls back to the long suffix")
}
