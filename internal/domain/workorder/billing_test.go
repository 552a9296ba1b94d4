package workorder

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

func TestApplyInvoice_NetsPrepayment(t *testing.T) {
	apID := uint(4)
	wo := &models.WorkOrder{ID: 9, AppointmentID: &apID, CustomerID: 2, Subtotal: decimal.NewFromInt(100), TaxAmount: decimal.NewFromInt(10), Total: decimal.NewFromInt(110)}

	inv := &models.Invoice{}
	ApplyInvoice(inv, wo, decimal.NewFromInt(40), now)
	assert.True(t, inv.AmountDue.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, InvoiceUnpaid, inv.Status)
	assert.Equal(t, now, inv.IssuedAt)

	inv = &models.Invoice{}
	ApplyInvoice(inv, wo, decimal.NewFromInt(150), now)
	assert.True(t, inv.AmountDue.IsZero())
	assert.Equal(t, InvoicePaid, inv.Status)

	assert.Equal(t, "INV-20260302-0007", NewInvoiceCode(now, 7))
}

func TestRollForward(t *testing.T) {
	wo := orderWithLines()
	wo.VehicleID = 3
	wo.Total = decimal.NewFromInt(82)

	h := &models.MaintenanceHistory{}
	RollForward(h, wo, 12000, ServiceInterval{Km: 5000, Months: 6}, now)

	assert.Equal(t, 17000, h.NextServiceMileage)
	assert.Equal(t, now.AddDate(0, 6, 0), h.NextServiceDate)
	assert.Equal(t, "Oil change; Filter x2", h.Summary)
	assert.True(t, h.TotalCost.Equal(decimal.NewFromInt(82)))
}

func TestParseTemplates_SkipsMalformed(t *testing.T) {
	items, errs := ParseTemplates([]models.ChecklistTemplate{
		{ServiceID: 1, Items: datatypes.JSON(`[{"title":"Check oil level","required":true},{"title":""}]`)},
		{ServiceID: 2, Items: datatypes.JSON(`{not json`)},
		{ServiceID: 3, Items: datatypes.JSON(`[{"title":"Inspect pads"}]`)},
	})

	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "service 2"))
	require.Len(t, items, 2)
	assert.True(t, items[0].Required)
	assert.False(t, items[1].Required)
}

func TestNew_RecomputesAndCounts(t *testing.T) {
	wo := New(Draft{
		Code:     "WO1",
		Services: ServicesFromAppointment([]models.AppointmentService{{ServiceID: 1, Name: "Oil", Price: decimal.NewFromInt(50), Source: "regular"}}),
		Checklist: []models.ChecklistItem{
			{Title: "a", Required: true},
		},
	}, decimal.RequireFromString("0.08"))

	assert.Equal(t, string(StatusCreated), wo.Status)
	assert.True(t, wo.Total.Equal(decimal.NewFromInt(54)))
	assert.Equal(t, 1, wo.ChecklistRequired)
	assert.Equal(t, ServicePending, wo.Services[0].Status)
}
