package workorder_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app/apptest"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	uc "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/workorder"
)

// checkedIn books, confirms and checks in; the order is ready to assign.
func checkedIn(t *testing.T, f *apptest.Fixture, services ...*models.Service) (*apptest.Booking, *models.WorkOrder) {
	t.Helper()
	ctx := context.Background()

	b := f.Book(services...)
	_, err := f.C.ConfirmAppointment.Execute(ctx, b.Appointment.ID, apptDomain.Staff(1))
	require.NoError(t, err)

	_, wo, err := f.C.CheckIn.Execute(ctx, ucAppointment.CheckInInput{ID: b.Appointment.ID, Actor: apptDomain.Staff(1)})
	require.NoError(t, err)
	return b, wo
}

func TestStart_RequiresTechnicianOnShift(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))

	_, err := f.C.StartWork.Execute(ctx, wo.ID, nil)
	assert.True(t, httperr.IsBusiness(err, "technician_not_assigned"))

	offShift := f.Technician(b.Center.ID, false)
	wo, err = f.C.AssignTechnician.Execute(ctx, wo.ID, offShift.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusAssigned), wo.Status)

	_, err = f.C.StartWork.Execute(ctx, wo.ID, nil)
	assert.True(t, httperr.IsBusiness(err, "technician_not_on_shift"))

	// reassigning keeps the status and swaps the technician
	onShift := f.Technician(b.Center.ID, true)
	wo, err = f.C.AssignTechnician.Execute(ctx, wo.ID, onShift.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusAssigned), wo.Status)

	wo, err = f.C.StartWork.Execute(ctx, wo.ID, &onShift.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInProgress), wo.Status)

	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusInProgress), ap.Status, "starting work moves the appointment along")
}

func TestComplete_InvoiceNetOfPrepayment(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	oil := f.Service("Oil change", "50.00", 30)
	require.NoError(t, f.DB.Create(&models.ChecklistTemplate{
		ServiceID: oil.ID,
		Items:     datatypes.JSON(`[{"title":"Check oil level","required":true},{"title":"Wipe dipstick"}]`),
	}).Error)

	// GIVEN a pre-paid booking checked in and under way
	b := f.Book(oil)
	f.PayInFull(b.Appointment)
	_, err := f.C.ConfirmAppointment.Execute(ctx, b.Appointment.ID, apptDomain.Staff(1))
	require.NoError(t, err)
	_, wo, err := f.C.CheckIn.Execute(ctx, ucAppointment.CheckInInput{ID: b.Appointment.ID, MileageIn: 15000, Actor: apptDomain.Staff(1)})
	require.NoError(t, err)
	require.Len(t, wo.Checklist, 2)

	tech := f.Technician(b.Center.ID, true)
	_, err = f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	// AND a part added mid-job
	wo, err = f.C.AddPart.Execute(ctx, uc.AddPartInput{
		WorkOrderID: wo.ID, Name: "Oil filter", Quantity: 1, UnitPrice: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	assert.True(t, wo.RequiresApproval)
	assert.True(t, wo.Total.Equal(decimal.RequireFromString("64.8")))

	// WHEN completion is attempted too early THEN each guard holds
	_, _, err = f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	be, ok := httperr.AsBusiness(err)
	require.True(t, ok)
	assert.Equal(t, "checklist_incomplete", be.Code)
	assert.Contains(t, be.Message, "Check oil level")
	assert.NotContains(t, be.Message, "Wipe dipstick", "optional items never block")

	unchanged, err := f.C.GetWorkOrder.Execute(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInProgress), unchanged.Status)
	assert.Equal(t, string(domain.ServicePending), unchanged.Services[0].Status, "a refused completion writes nothing")

	var required models.ChecklistItem
	for _, it := range wo.Checklist {
		if it.Required {
			required = it
		}
	}
	_, err = f.C.CompleteChecklistItem.Execute(ctx, wo.ID, required.ID, &tech.ID)
	require.NoError(t, err)

	_, _, err = f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	assert.True(t, httperr.IsBusiness(err, "customer_approval_required"))

	_, err = f.C.ApproveExtras.Execute(ctx, wo.ID, &b.Customer.ID, nil)
	require.NoError(t, err)

	// WHEN it completes
	done, inv, err := f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	// THEN the invoice only bills what was not pre-paid
	assert.Equal(t, string(domain.StatusCompleted), done.Status)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("64.8")))
	assert.True(t, inv.PrepaidAmount.Equal(decimal.RequireFromString("50")))
	assert.True(t, inv.AmountDue.Equal(decimal.RequireFromString("14.8")))
	assert.Equal(t, domain.InvoiceUnpaid, inv.Status)
	assert.Equal(t, "INV-20260302-0001", inv.Code)

	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusCompletedWithUnpaidBalance), ap.Status)
	assert.True(t, ap.FinalCost.Decimal.Equal(decimal.RequireFromString("64.8")))

	var history models.MaintenanceHistory
	require.NoError(t, f.DB.Where("work_order_id = ?", wo.ID).First(&history).Error)
	assert.Equal(t, 15000, history.Mileage)
	assert.Equal(t, 20000, history.NextServiceMileage)

	var vehicle models.Vehicle
	require.NoError(t, f.DB.First(&vehicle, b.Vehicle.ID).Error)
	assert.Equal(t, 15000, vehicle.Mileage)

	// AND completing again returns the same invoice
	_, again, err := f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)

	var invoices int64
	require.NoError(t, f.DB.Model(&models.Invoice{}).Where("work_order_id = ?", wo.ID).Count(&invoices).Error)
	assert.EqualValues(t, 1, invoices)
}

func TestComplete_OverpaymentIsRefunded(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN a 100 estimate paid in full whose final order is cheaper
	b := f.Book(f.Service("Full service", "100.00", 90))
	f.PayInFull(b.Appointment)
	_, err := f.C.ConfirmAppointment.Execute(ctx, b.Appointment.ID, apptDomain.Staff(1))
	require.NoError(t, err)
	_, wo, err := f.C.CheckIn.Execute(ctx, ucAppointment.CheckInInput{ID: b.Appointment.ID, Actor: apptDomain.Staff(1)})
	require.NoError(t, err)

	// the only line is dropped by the shop, leaving a zero-cost order
	require.NoError(t, f.DB.Model(&models.WorkOrderService{}).Where("work_order_id = ?", wo.ID).
		Update("status", domain.ServiceCancelled).Error)

	tech := f.Technician(b.Center.ID, true)
	_, err = f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	_, inv, err := f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	assert.True(t, inv.AmountDue.IsZero())
	assert.Equal(t, domain.InvoicePaid, inv.Status)

	// THEN the appointment is complete and the surplus goes back
	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusCompleted), ap.Status)

	refunds := f.Sandbox.Refunds()
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(decimal.RequireFromString("100")))
	assert.Contains(t, refunds[0].RefundKey, "adjust:")
}

func TestCancel_CancelsAppointmentAndReturnsParts(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))

	wo, err := f.C.AddPart.Execute(ctx, uc.AddPartInput{WorkOrderID: wo.ID, Name: "Gasket", Quantity: 2, UnitPrice: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.False(t, wo.RequiresApproval, "parts added before work starts need no approval")

	_, err = f.C.CancelWorkOrder.Execute(ctx, wo.ID, " ", nil)
	assert.True(t, httperr.IsBusiness(err, "reason_required"))

	cancelled, err := f.C.CancelWorkOrder.Execute(ctx, wo.ID, "customer left", nil)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCancelled), cancelled.Status)

	got, err := f.C.GetWorkOrder.Execute(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, got.Parts, 1)
	assert.Equal(t, domain.PartReturned, got.Parts[0].Status)

	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusCancelled), ap.Status)
	assert.Contains(t, ap.CancellationReason, "customer left")
}

func TestTransition_OnlyParkingEdges(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))

	_, err := f.C.TransitionWorkOrder.Execute(ctx, wo.ID, domain.StatusCompleted, "", nil)
	assert.True(t, httperr.IsBusiness(err, "use_dedicated_operation"))

	_, err = f.C.TransitionWorkOrder.Execute(ctx, wo.ID, domain.StatusAwaitingParts, "waiting", nil)
	assert.True(t, httperr.IsBusiness(err, "invalid_transition"), "Created cannot park for parts")

	tech := f.Technician(b.Center.ID, true)
	_, err = f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	wo, err = f.C.TransitionWorkOrder.Execute(ctx, wo.ID, domain.StatusQualityCheck, "ready for QC", &tech.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusQualityCheck), wo.Status)

	_, err = f.C.AddPart.Execute(ctx, uc.AddPartInput{WorkOrderID: wo.ID, Name: "Bulb", Quantity: 1, UnitPrice: decimal.NewFromInt(2)})
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestWalkIn_UsesBasePrices(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	center := f.Center()
	c, v := f.Customer()
	wash := f.Service("Wash", "20.00", 15)

	wo, err := f.C.CreateWalkIn.Execute(ctx, uc.WalkInInput{
		ServiceCenterID: center.ID,
		CustomerID:      c.ID,
		VehicleID:       v.ID,
		ServiceIDs:      []uint{wash.ID},
	})
	require.NoError(t, err)
	assert.Nil(t, wo.AppointmentID)
	assert.Equal(t, v.Mileage, wo.MileageIn)
	assert.True(t, wo.Total.Equal(decimal.RequireFromString("21.6")))

	other, _ := f.Customer()
	_, err = f.C.CreateWalkIn.Execute(ctx, uc.WalkInInput{ServiceCenterID: center.ID, CustomerID: other.ID, VehicleID: v.ID})
	assert.True(t, httperr.IsBusiness(err, "vehicle_not_owned"))
}

func TestCancelAppointment_ClosesOpenWorkOrder(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN a checked-in booking whose order holds a reserved part
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))
	_, err := f.C.AddPart.Execute(ctx, uc.AddPartInput{WorkOrderID: wo.ID, Name: "Gasket", Quantity: 1, UnitPrice: decimal.NewFromInt(3)})
	require.NoError(t, err)

	// WHEN staff cancel the appointment
	_, err = f.C.CancelAppointment.Execute(ctx, ucAppointment.CancelAppointmentInput{
		ID: b.Appointment.ID, Reason: "customer left", Actor: apptDomain.Staff(1),
	})
	require.NoError(t, err)

	// THEN the order is cancelled in the same unit of work
	got, err := f.C.GetWorkOrder.Execute(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCancelled), got.Status)
	assert.Contains(t, got.CancellationReason, "customer left")
	require.Len(t, got.Services, 1)
	assert.Equal(t, domain.ServiceCancelled, got.Services[0].Status)
	require.Len(t, got.Parts, 1)
	assert.Equal(t, domain.PartReturned, got.Parts[0].Status)

	// AND it can no longer be worked or billed
	tech := f.Technician(b.Center.ID, true)
	_, err = f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	assert.Error(t, err)
	_, _, err = f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	assert.True(t, httperr.IsBusiness(err, "appointment_closed"))

	var invoices int64
	require.NoError(t, f.DB.Model(&models.Invoice{}).Where("work_order_id = ?", wo.ID).Count(&invoices).Error)
	assert.Zero(t, invoices)
}

func TestCancelAppointment_RefusedOnceInQualityCheck(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN an order already handed to quality check
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))
	tech := f.Technician(b.Center.ID, true)
	_, err := f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	_, err = f.C.TransitionWorkOrder.Execute(ctx, wo.ID, domain.StatusQualityCheck, "ready for QC", &tech.ID)
	require.NoError(t, err)

	// WHEN staff try to cancel the appointment
	_, err = f.C.CancelAppointment.Execute(ctx, ucAppointment.CancelAppointmentInput{
		ID: b.Appointment.ID, Reason: "changed mind", Actor: apptDomain.Staff(1),
	})

	// THEN nothing moves
	assert.True(t, httperr.IsBusiness(err, "work_order_not_cancellable"))
	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusInProgress), ap.Status)
	got, err := f.C.GetWorkOrder.Execute(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusQualityCheck), got.Status)
}

func TestComplete_RefusedWhenAppointmentClosed(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN an order under way whose appointment was closed behind its back
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))
	tech := f.Technician(b.Center.ID, true)
	_, err := f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	require.NoError(t, f.DB.Model(&models.Appointment{}).Where("id = ?", b.Appointment.ID).
		Update("status", int(apptDomain.StatusCancelled)).Error)

	// WHEN completion is attempted
	_, _, err = f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)

	// THEN it is refused before anything is written
	assert.True(t, httperr.IsBusiness(err, "appointment_closed"))
	got, err := f.C.GetWorkOrder.Execute(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInProgress), got.Status)

	var invoices int64
	require.NoError(t, f.DB.Model(&models.Invoice{}).Where("work_order_id = ?", wo.ID).Count(&invoices).Error)
	assert.Zero(t, invoices)
}

func TestStart_RetryRepairsLaggingAppointment(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()

	// GIVEN work started but the appointment never caught up
	b, wo := checkedIn(t, f, f.Service("Oil change", "50.00", 30))
	tech := f.Technician(b.Center.ID, true)
	_, err := f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	require.NoError(t, f.DB.Model(&models.Appointment{}).Where("id = ?", b.Appointment.ID).
		Update("status", int(apptDomain.StatusCheckedIn)).Error)

	// WHEN start is retried
	again, err := f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	// THEN the order is unchanged and the appointment is repaired
	assert.Equal(t, string(domain.StatusInProgress), again.Status)
	ap := f.Reload(b.Appointment)
	assert.Equal(t, int(apptDomain.StatusInProgress), ap.Status)

	var timeline int64
	require.NoError(t, f.DB.Model(&models.WorkOrderTimeline{}).
		Where("work_order_id = ? AND to_status = ?", wo.ID, string(domain.StatusInProgress)).Count(&timeline).Error)
	assert.EqualValues(t, 1, timeline, "a retry writes no second entry")
}

func TestComplete_DeductsSubscriptionOnce(t *testing.T) {
	f := apptest.New(t)
	ctx := context.Background()
	oil := f.Service("Oil change", "50.00", 30)
	center := f.Center()
	customer, vehicle := f.Customer()
	slot := f.Slot(center.ID, 24*time.Hour, 1)

	// GIVEN an active plan with two oil changes left
	sub := &models.Subscription{
		CustomerID: customer.ID, VehicleID: vehicle.ID, Status: "active", ValidUntil: f.Clock.Now().AddDate(1, 0, 0),
	}
	require.NoError(t, f.DB.Create(sub).Error)
	require.NoError(t, f.DB.Create(&models.SubscriptionQuota{SubscriptionID: sub.ID, ServiceID: oil.ID, Allowed: 2}).Error)

	// AND a booking covered by it
	ap, err := f.C.CreateAppointment.Execute(ctx, ucAppointment.CreateAppointmentInput{
		CustomerID: customer.ID, VehicleID: vehicle.ID, SlotID: slot.ID,
		ServiceIDs: []uint{oil.ID}, SubscriptionID: &sub.ID, Actor: apptDomain.Staff(1),
	})
	require.NoError(t, err)
	require.Len(t, ap.Services, 1)
	assert.Equal(t, string(apptDomain.SourceSubscription), ap.Services[0].Source)
	assert.True(t, ap.EstimatedCost.IsZero())

	_, err = f.C.ConfirmAppointment.Execute(ctx, ap.ID, apptDomain.Staff(1))
	require.NoError(t, err)
	_, wo, err := f.C.CheckIn.Execute(ctx, ucAppointment.CheckInInput{ID: ap.ID, Actor: apptDomain.Staff(1)})
	require.NoError(t, err)
	tech := f.Technician(center.ID, true)
	_, err = f.C.AssignTechnician.Execute(ctx, wo.ID, tech.ID, nil)
	require.NoError(t, err)
	_, err = f.C.StartWork.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	// WHEN the order completes and completion is repeated
	_, inv, err := f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)
	assert.True(t, inv.Total.IsZero())
	_, _, err = f.C.CompleteWorkOrder.Execute(ctx, wo.ID, &tech.ID)
	require.NoError(t, err)

	// THEN the plan is charged exactly one use
	var usage int64
	require.NoError(t, f.DB.Model(&models.SubscriptionUsage{}).Where("appointment_id = ?", ap.ID).Count(&usage).Error)
	assert.EqualValues(t, 1, usage)

	var quota models.SubscriptionQuota
	require.NoError(t, f.DB.Where("subscription_id = ? AND service_id = ?", sub.ID, oil.ID).First(&quota).Error)
	assert.Equal(t, 1, quota.Used)

	done := f.Reload(ap)
	assert.Equal(t, int(apptDomain.StatusCompleted), done.Status)
}
