// Package app builds the use-case graph once, for the API binary and for
// handler tests.
package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	recDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/reconciliation"
	woDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/workorder"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/events"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/cache"
	infraRepo "github.com/NghiaaPham/ServiceCenter-sub002/internal/infra/repository"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
	ucAppointment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
	ucReconcile "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/reconciliation"
	ucWorkOrder "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/workorder"
)

// Integrations are the optional outside systems. Nil fields fall back to
// in-process behaviour.
type Integrations struct {
	Forwarder events.Forwarder
	Gateways  payDomain.Registry
	KeyCache  ucPayment.KeyCache
	Locker    ucReconcile.Locker
	Archiver  ucReconcile.Archiver
	Clock     timezone.Clock
}

type Container struct {
	DB       *gorm.DB
	Bus      *events.Bus
	Audit    *audit.Dispatcher
	Clock    timezone.Clock
	Location *time.Location

	// -------- Appointments --------
	CreateAppointment     *ucAppointment.CreateAppointment
	GetAppointment        *ucAppointment.GetAppointment
	ListAppointments      *ucAppointment.ListAppointments
	GetAvailability       *ucAppointment.GetAvailability
	UpdateAppointment     *ucAppointment.UpdateAppointment
	ConfirmAppointment    *ucAppointment.ConfirmAppointment
	CancelAppointment     *ucAppointment.CancelAppointment
	DeleteAppointment     *ucAppointment.DeleteAppointment
	RescheduleAppointment *ucAppointment.RescheduleAppointment
	CheckIn               *ucAppointment.CheckInAppointment
	MarkNoShow            *ucAppointment.MarkNoShow

	// -------- Payments --------
	IssueIntent    *ucPayment.IssueIntent
	PrePayment     *ucPayment.CreatePrePayment
	HandleCallback *ucPayment.HandleCallback
	RequestRefund  *ucPayment.RequestRefund
	ProcessRefund  *ucPayment.ProcessRefund
	Refunder       *ucPayment.AppointmentRefunder
	ExpireIntent   *ucPayment.ExpireIntent
	CancelIntent   *ucPayment.CancelIntent
	GetIntent      *ucPayment.GetIntent
	ResyncPayment  *ucPayment.ResyncAppointment

	// -------- Work orders --------
	CreateWalkIn          *ucWorkOrder.CreateWalkIn
	GetWorkOrder          *ucWorkOrder.GetWorkOrder
	AssignTechnician      *ucWorkOrder.AssignTechnician
	StartWork             *ucWorkOrder.StartWork
	TransitionWorkOrder   *ucWorkOrder.TransitionWorkOrder
	AddPart               *ucWorkOrder.AddPart
	ApproveExtras         *ucWorkOrder.ApproveExtras
	CompleteChecklistItem *ucWorkOrder.CompleteChecklistItem
	CompleteWorkOrder     *ucWorkOrder.CompleteWorkOrder
	CancelWorkOrder       *ucWorkOrder.CancelWorkOrder

	// -------- Reconciliation --------
	Reconciler *ucReconcile.Engine
}

func New(db *gorm.DB, cfg *config.Config, in Integrations) *Container {
	clock := in.Clock
	if clock == nil {
		clock = timezone.SystemClock{}
	}
	locker := in.Locker
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	loc := timezone.Location(cfg.Timezone)

	// ======================================================
	// INFRA
	// ======================================================
	appointmentRepo := infraRepo.NewAppointmentGormRepository(db)
	paymentRepo := infraRepo.NewPaymentGormRepository(db)
	workOrderRepo := infraRepo.NewWorkOrderGormRepository(db)
	reconcileRepo := infraRepo.NewReconciliationGormRepository(db)
	shifts := infraRepo.NewShiftGormChecker(db)

	auditDispatcher := audit.NewDispatcher(audit.New(db))
	bus := events.NewBus(in.Forwarder)

	c := &Container{
		DB:       db,
		Bus:      bus,
		Audit:    auditDispatcher,
		Clock:    clock,
		Location: loc,
	}

	// ======================================================
	// PAYMENTS
	// ======================================================
	c.IssueIntent = ucPayment.NewIssueIntent(paymentRepo, auditDispatcher, clock, in.Gateways, in.KeyCache, ucPayment.IssueConfig{
		Currency:   cfg.Currency,
		TTL:        cfg.IntentTTL,
		ReturnURL:  cfg.PublicBaseURL + "/payments/return",
		IPNBaseURL: cfg.PublicBaseURL + "/api/webhooks/payments",
	})
	c.PrePayment = ucPayment.NewCreatePrePayment(paymentRepo, c.IssueIntent)
	c.RequestRefund = ucPayment.NewRequestRefund(paymentRepo, auditDispatcher, clock)
	c.ProcessRefund = ucPayment.NewProcessRefund(paymentRepo, auditDispatcher, clock, bus, in.Gateways)
	c.Refunder = ucPayment.NewAppointmentRefunder(paymentRepo, c.RequestRefund, c.ProcessRefund)
	c.HandleCallback = ucPayment.NewHandleCallback(paymentRepo, auditDispatcher, clock, bus, in.Gateways, c.Refunder)
	c.ExpireIntent = ucPayment.NewExpireIntent(paymentRepo, auditDispatcher, clock, bus)
	c.CancelIntent = ucPayment.NewCancelIntent(paymentRepo, auditDispatcher, clock)
	c.GetIntent = ucPayment.NewGetIntent(paymentRepo)
	c.ResyncPayment = ucPayment.NewResyncAppointment(paymentRepo, auditDispatcher, clock)

	// ======================================================
	// APPOINTMENTS
	// ======================================================
	c.CreateAppointment = ucAppointment.NewCreateAppointment(appointmentRepo, auditDispatcher, clock, bus)
	c.GetAppointment = ucAppointment.NewGetAppointment(appointmentRepo)
	c.ListAppointments = ucAppointment.NewListAppointments(appointmentRepo)
	c.GetAvailability = ucAppointment.NewGetAvailability(appointmentRepo)
	c.UpdateAppointment = ucAppointment.NewUpdateAppointment(appointmentRepo, auditDispatcher, clock)
	c.ConfirmAppointment = ucAppointment.NewConfirmAppointment(appointmentRepo, auditDispatcher, clock, bus)
	c.CancelAppointment = ucAppointment.NewCancelAppointment(appointmentRepo, auditDispatcher, clock, bus, c.Refunder)
	c.DeleteAppointment = ucAppointment.NewDeleteAppointment(appointmentRepo, auditDispatcher)
	c.RescheduleAppointment = ucAppointment.NewRescheduleAppointment(appointmentRepo, auditDispatcher, clock, bus)
	c.CheckIn = ucAppointment.NewCheckInAppointment(appointmentRepo, auditDispatcher, clock, bus, cfg.TaxRate)
	c.MarkNoShow = ucAppointment.NewMarkNoShow(appointmentRepo, auditDispatcher, clock, bus, cfg.NoShowGrace)

	ucAppointment.Subscribe(bus,
		ucAppointment.NewMarkInProgress(appointmentRepo, auditDispatcher, clock),
		ucAppointment.NewCompleteFromWorkOrder(appointmentRepo, auditDispatcher, clock, bus, c.Refunder),
		ucAppointment.NewCancelFromWorkOrder(appointmentRepo, auditDispatcher, clock, bus, c.Refunder),
	)

	// ======================================================
	// WORK ORDERS
	// ======================================================
	c.CreateWalkIn = ucWorkOrder.NewCreateWalkIn(workOrderRepo, auditDispatcher, clock, cfg.TaxRate)
	c.GetWorkOrder = ucWorkOrder.NewGetWorkOrder(workOrderRepo)
	c.AssignTechnician = ucWorkOrder.NewAssignTechnician(workOrderRepo, auditDispatcher, clock)
	c.StartWork = ucWorkOrder.NewStartWork(workOrderRepo, shifts, auditDispatcher, clock, bus)
	c.TransitionWorkOrder = ucWorkOrder.NewTransitionWorkOrder(workOrderRepo, auditDispatcher, clock)
	c.AddPart = ucWorkOrder.NewAddPart(workOrderRepo, auditDispatcher, clock, cfg.TaxRate)
	c.ApproveExtras = ucWorkOrder.NewApproveExtras(workOrderRepo, auditDispatcher, clock)
	c.CompleteChecklistItem = ucWorkOrder.NewCompleteChecklistItem(workOrderRepo, auditDispatcher, clock)
	c.CompleteWorkOrder = ucWorkOrder.NewCompleteWorkOrder(workOrderRepo, auditDispatcher, clock, bus, ucWorkOrder.CompleteConfig{
		TaxRate:  cfg.TaxRate,
		Interval: woDomain.ServiceInterval{Km: cfg.ServiceIntervalKm, Months: cfg.ServiceIntervalMon},
		Location: loc,
	})
	c.CancelWorkOrder = ucWorkOrder.NewCancelWorkOrder(workOrderRepo, auditDispatcher, clock, bus)

	// ======================================================
	// RECONCILIATION
	// ======================================================
	recCfg := recDomain.DefaultConfig()
	recCfg.StaleBookingWindow = cfg.StaleBookingWindow
	recCfg.AutoCancelWarnRate = cfg.AutoCancelWarnRate
	recCfg.UnpaidBacklogWarn = cfg.UnpaidBacklogWarn
	recCfg.Location = loc

	c.Reconciler = ucReconcile.NewEngine(
		reconcileRepo,
		paymentRepo,
		ucReconcile.Sweepers{
			Cancel:  c.CancelAppointment,
			Expire:  c.ExpireIntent,
			Resync:  c.ResyncPayment,
			Refunds: c.Refunder,
			Process: c.ProcessRefund,
		},
		locker,
		in.Archiver,
		auditDispatcher,
		clock,
		recCfg,
	)

	return c
}

// Close drains the audit queue.
func (c *Container) Close() {
	c.Audit.Close()
}
