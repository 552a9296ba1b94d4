package workorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
)

// NewInvoiceCode formats INV-yyyyMMdd-#### from a daily sequence.
func NewInvoiceCode(day time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), seq)
}

// ApplyInvoice fills inv from the order totals, netting what the
// appointment already paid so the customer is never billed twice.
func ApplyInvoice(inv *models.Invoice, wo *models.WorkOrder, prepaid decimal.Decimal, now time.Time) {
	inv.WorkOrderID = wo.ID
	inv.AppointmentID = wo.AppointmentID
	inv.CustomerID = wo.CustomerID
	inv.Subtotal = wo.Subtotal
	inv.TaxAmount = wo.TaxAmount
	inv.Total = wo.Total
	inv.PrepaidAmount = prepaid.Round(2)

	due := wo.Total.Sub(inv.PrepaidAmount)
	if due.IsNegative() {
		due = decimal.Zero
	}
	inv.AmountDue = due

	inv.Status = InvoiceUnpaid
	if due.IsZero() {
		inv.Status = InvoicePaid
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = now
	}
}

type ServiceInterval struct {
	Km     int
	Months int
}

// RollForward writes the vehicle's next-service targets onto h.
func RollForward(h *models.MaintenanceHistory, wo *models.WorkOrder, mileage int, every ServiceInterval, now time.Time) {
	h.VehicleID = wo.VehicleID
	h.WorkOrderID = wo.ID
	h.AppointmentID = wo.AppointmentID
	h.ServiceDate = now
	h.Mileage = mileage
	h.NextServiceMileage = mileage + every.Km
	h.NextServiceDate = now.AddDate(0, every.Months, 0)
	h.TotalCost = wo.Total

	names := make([]string, 0, len(wo.Services)+len(wo.Parts))
	for _, s := range wo.Services {
		if s.Status != ServiceCancelled {
			names = append(names, s.Name)
		}
	}
	for _, p := range wo.Parts {
		if p.Status != PartReturned {
			names = append(names, fmt.Sprintf("%s x%d", p.Name, p.Quantity))
		}
	}
	summary := strings.Join(names, "; ")
	if len(summary) > 500 {
		summary = summary[:500]
	}
	h.Summary = summary
}
