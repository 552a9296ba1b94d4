// Package apptest wires a Container over a throwaway sqlite database with
// the sandbox gateway and a fixed clock, plus seed helpers for use-case
// and handler tests.
package apptest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/db/dbtest"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/gateway"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

const (
	SandboxSecret = "test-secret"
	BaseURL       = "http://service.test"
)

// Start is where every fixture clock begins: a Monday morning, UTC.
var Start = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type Fixture struct {
	T       *testing.T
	DB      *gorm.DB
	Cfg     *config.Config
	Clock   *timezone.FixedClock
	Sandbox *gateway.Sandbox
	C       *app.Container

	seq atomic.Int64
}

// Config mirrors the environment defaults with a UTC business day.
func Config() *config.Config {
	return &config.Config{
		JWTSecret:          "test-jwt",
		JWTExpireMin:       60,
		PublicBaseURL:      BaseURL,
		Timezone:           "UTC",
		Env:                "test",
		SandboxSecret:      SandboxSecret,
		Currency:           "VND",
		ReconcileInterval:  15 * time.Minute,
		StaleBookingWindow: 48 * time.Hour,
		IntentTTL:          30 * time.Minute,
		NoShowGrace:        15 * time.Minute,
		TaxRate:            decimal.RequireFromString("0.08"),
		AutoCancelWarnRate: 0.2,
		UnpaidBacklogWarn:  10,
		ServiceIntervalKm:  5000,
		ServiceIntervalMon: 6,
	}
}

func New(t *testing.T) *Fixture {
	return NewWith(t, app.Integrations{})
}

// NewWith lets a test supply its own integrations. Gateways and Clock are
// filled in when left empty.
func NewWith(t *testing.T, in app.Integrations) *Fixture {
	t.Helper()

	f := &Fixture{
		T:     t,
		DB:    dbtest.Open(t),
		Cfg:   Config(),
		Clock: timezone.NewFixedClock(Start),
	}
	f.Sandbox = gateway.NewSandbox(SandboxSecret, BaseURL)
	// timestamps gorm fills itself follow the fixture clock too
	f.DB.Config.NowFunc = func() time.Time { return f.Clock.Now().UTC() }

	if in.Gateways == nil {
		in.Gateways = payDomain.NewRegistry(f.Sandbox)
	}
	if in.Clock == nil {
		in.Clock = f.Clock
	}
	f.C = app.New(f.DB, f.Cfg, in)
	t.Cleanup(f.C.Close)
	return f
}

func (f *Fixture) next() int64 { return f.seq.Add(1) }

// ======================================================
// SEED
// ======================================================

func (f *Fixture) Center() *models.ServiceCenter {
	n := f.next()
	sc := &models.ServiceCenter{Name: fmt.Sprintf("Center %d", n), Code: fmt.Sprintf("SC%03d", n), Timezone: "UTC"}
	require.NoError(f.T, f.DB.Create(sc).Error)
	return sc
}

// Customer creates a customer that owns one vehicle.
func (f *Fixture) Customer() (*models.Customer, *models.Vehicle) {
	n := f.next()
	c := &models.Customer{Name: fmt.Sprintf("Customer %d", n), Phone: fmt.Sprintf("09000%05d", n)}
	require.NoError(f.T, f.DB.Create(c).Error)

	vm := &models.VehicleModel{Brand: "VinFast", Name: fmt.Sprintf("VF%d", n)}
	require.NoError(f.T, f.DB.Create(vm).Error)

	v := &models.Vehicle{CustomerID: c.ID, VehicleModelID: vm.ID, Plate: fmt.Sprintf("51A-%05d", n), Mileage: 12000}
	require.NoError(f.T, f.DB.Create(v).Error)
	return c, v
}

func (f *Fixture) Service(name, price string, minutes int) *models.Service {
	s := &models.Service{Name: name, BasePrice: decimal.RequireFromString(price), DurationMin: minutes, Active: true}
	require.NoError(f.T, f.DB.Create(s).Error)
	return s
}

// Slot opens a one-hour slot starting `in` after the fixture clock.
func (f *Fixture) Slot(centerID uint, in time.Duration, capacity int) *models.TimeSlot {
	start := f.Clock.Now().Add(in)
	s := &models.TimeSlot{
		ServiceCenterID: centerID,
		StartsAt:        start,
		EndsAt:          start.Add(time.Hour),
		MaxBookings:     capacity,
		Active:          true,
	}
	require.NoError(f.T, f.DB.Create(s).Error)
	return s
}

func (f *Fixture) Technician(centerID uint, onShift bool) *models.User {
	n := f.next()
	u := &models.User{
		ServiceCenterID: centerID,
		Name:            fmt.Sprintf("Tech %d", n),
		Email:           fmt.Sprintf("tech%d@service.test", n),
		PasswordHash:    "x",
		Role:            "technician",
	}
	require.NoError(f.T, f.DB.Create(u).Error)

	if onShift {
		now := f.Clock.Now()
		require.NoError(f.T, f.DB.Create(&models.TechnicianShift{
			TechnicianID: u.ID,
			StartsAt:     now.Add(-time.Hour),
			EndsAt:       now.Add(8 * time.Hour),
		}).Error)
	}
	return u
}

// ======================================================
// FLOWS
// ======================================================

// Booking is one customer with a vehicle and a Pending appointment.
type Booking struct {
	Center      *models.ServiceCenter
	Customer    *models.Customer
	Vehicle     *models.Vehicle
	Slot        *models.TimeSlot
	Appointment *models.Appointment
}

// Book creates a customer and books them on a fresh slot tomorrow.
func (f *Fixture) Book(services ...*models.Service) *Booking {
	f.T.Helper()
	b := &Booking{Center: f.Center()}
	b.Customer, b.Vehicle = f.Customer()
	b.Slot = f.Slot(b.Center.ID, 24*time.Hour, 2)

	ids := make([]uint, 0, len(services))
	for _, s := range services {
		ids = append(ids, s.ID)
	}
	ap, err := f.C.CreateAppointment.Execute(context.Background(), ucAppointment.CreateAppointmentInput{
		CustomerID: b.Customer.ID,
		VehicleID:  b.Vehicle.ID,
		SlotID:     b.Slot.ID,
		ServiceIDs: ids,
		Actor:      apptDomain.Customer(b.Customer.ID),
	})
	require.NoError(f.T, err)
	b.Appointment = ap
	return b
}

// Callback builds signed sandbox callback fields for an intent.
func (f *Fixture) Callback(pi *models.PaymentIntent, amount string, success bool) (map[string]string, string) {
	result := gateway.SandboxSuccess
	if !success {
		result = "51"
	}
	fields := map[string]string{
		"code":   pi.Code,
		"amount": amount,
		"result": result,
		"txn":    "TX-" + pi.Code,
	}
	return fields, f.Sandbox.Sign(fields)
}

// PayInFull issues a pre-payment for what is owed and captures it.
func (f *Fixture) PayInFull(ap *models.Appointment) *models.PaymentIntent {
	f.T.Helper()
	ctx := context.Background()

	pi, err := f.C.PrePayment.Execute(ctx, ucPayment.PrePaymentInput{
		AppointmentID: ap.ID,
		Provider:      "sandbox",
	})
	require.NoError(f.T, err)

	fields, sig := f.Callback(pi, pi.Amount.StringFixed(2), true)
	pi, err = f.C.HandleCallback.Execute(ctx, "sandbox", fields, sig)
	require.NoError(f.T, err)
	return pi
}

func (f *Fixture) Reload(ap *models.Appointment) *models.Appointment {
	f.T.Helper()
	var out models.Appointment
	require.NoError(f.T, f.DB.Preload("Services").First(&out, ap.ID).Error)
	return &out
}
