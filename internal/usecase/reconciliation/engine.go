package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	payDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/reconciliation"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
	apptUC "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/appointment"
	payUC "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

var tracer = otel.Tracer("github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/reconciliation")

const lockKey = "reconciliation:sweep"

// Locker keeps a single sweeper across replicas.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Archiver stores finished reports outside the database.
type Archiver interface {
	Put(ctx context.Context, key string, contentType string, body []byte) (string, error)
}

// Sweepers are the write paths the passes go through, so every repair
// takes the same locks and guards as a live request.
type Sweepers struct {
	Cancel  *apptUC.CancelAppointment
	Expire  *payUC.ExpireIntent
	Resync  *payUC.ResyncAppointment
	Refunds *payUC.AppointmentRefunder
	Process *payUC.ProcessRefund
}

type Engine struct {
	repo     domain.Repository
	payments payDomain.Repository
	sweep    Sweepers
	locker   Locker
	archive  Archiver
	audit    *audit.Dispatcher
	clock    timezone.Clock
	cfg      domain.Config
}

func NewEngine(
	repo domain.Repository,
	payments payDomain.Repository,
	sweep Sweepers,
	locker Locker,
	archive Archiver,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	cfg domain.Config,
) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultConfig().BatchSize
	}
	return &Engine{
		repo:     repo,
		payments: payments,
		sweep:    sweep,
		locker:   locker,
		archive:  archive,
		audit:    audit,
		clock:    clock,
		cfg:      cfg,
	}
}

// Run executes every pass once. Passes are independent: a failing pass
// is recorded on the run and the others still execute. Re-running is
// always safe.
func (e *Engine) Run(ctx context.Context) (*models.ReconciliationRun, error) {
	ctx, span := tracer.Start(ctx, "reconciliation.run")
	defer span.End()

	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, lockKey, 10*time.Minute)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, httperr.ErrRetryable("reconciliation_running", "another sweep holds the lock")
		}
		defer release()
	}

	now := e.clock.Now()
	run := &models.ReconciliationRun{Status: "running", StartedAt: now}
	if err := e.repo.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	var errs []error
	note := func(pass string, err error) {
		if err != nil {
			log.Printf("[reconcile] %s: %v", pass, err)
			errs = append(errs, fmt.Errorf("%s: %w", pass, err))
		}
	}

	var err error
	run.AutoCancelled, err = e.autoCancel(ctx, now)
	note("auto_cancel", err)

	run.IntentsExpired, err = e.expireIntents(ctx, now)
	note("expire_intents", err)

	run.PaymentsResynced, err = e.resyncPayments(ctx)
	note("resync_payments", err)

	note("paid_cancellations", e.healPaidCancellations(ctx, now))

	run.RefundsDispatched, err = e.dispatchRefunds(ctx)
	note("dispatch_refunds", err)

	_, err = e.SaveReport(ctx, now)
	note("report", err)

	finished := e.clock.Now()
	run.FinishedAt = &finished
	run.Status = "completed"
	if len(errs) > 0 {
		run.Status = "completed_with_errors"
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		run.Error = strings.Join(msgs, "; ")
		span.RecordError(errors.Join(errs...))
	}
	span.SetAttributes(
		attribute.Int("reconcile.auto_cancelled", run.AutoCancelled),
		attribute.Int("reconcile.intents_expired", run.IntentsExpired),
		attribute.Int("reconcile.payments_resynced", run.PaymentsResynced),
		attribute.Int("reconcile.refunds_dispatched", run.RefundsDispatched),
	)

	if err := e.repo.SaveRun(ctx, run); err != nil {
		return run, err
	}

	log.Printf("[reconcile] run %d %s: cancelled=%d expired=%d resynced=%d refunds=%d",
		run.ID, run.Status, run.AutoCancelled, run.IntentsExpired, run.PaymentsResynced, run.RefundsDispatched)

	e.audit.Dispatch(audit.Event{
		Actor:    "system",
		Action:   "reconciliation_run",
		Entity:   "reconciliation_run",
		EntityID: &run.ID,
		Metadata: run,
	})
	return run, nil
}

// --------------------------------------------------
// Pass 1: stale bookings
// --------------------------------------------------

func (e *Engine) autoCancel(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-e.cfg.StaleBookingWindow)
	ids, err := e.repo.ListStaleBookings(ctx, cutoff, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for _, id := range ids {
		ok, err := e.sweep.Cancel.AutoCancel(ctx, id, cutoff, e.cfg.StaleBookingWindow)
		if err != nil {
			errs = append(errs, fmt.Errorf("appointment %d: %w", id, err))
			continue
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// --------------------------------------------------
// Pass 2: stale intents
// --------------------------------------------------

func (e *Engine) expireIntents(ctx context.Context, now time.Time) (int, error) {
	intents, err := e.payments.ListExpiredPending(ctx, now, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for _, pi := range intents {
		ok, err := e.sweep.Expire.Execute(ctx, pi.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("intent %s: %w", pi.Code, err))
			continue
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// --------------------------------------------------
// Pass 3: payment status resync
// --------------------------------------------------

func needsResync(v domain.PaymentView) bool {
	if !v.PaidAmount.Equal(v.Captured) {
		return true
	}
	return v.Captured.IsPositive() && v.PaymentStatus == string(apptDomain.PaymentPending)
}

func (e *Engine) resyncPayments(ctx context.Context) (int, error) {
	views, err := e.repo.ListPaymentViews(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for _, v := range views {
		if !needsResync(v) {
			continue
		}
		changed, err := e.sweep.Resync.Execute(ctx, v.AppointmentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("appointment %d: %w", v.AppointmentID, err))
			continue
		}
		if changed {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// healPaidCancellations opens refunds that a cancellation failed to open.
func (e *Engine) healPaidCancellations(ctx context.Context, now time.Time) error {
	if e.sweep.Refunds == nil {
		return nil
	}
	views, err := e.repo.ListPaidCancellations(ctx, now.Add(-e.cfg.RefundLookback), e.cfg.BatchSize)
	if err != nil {
		return err
	}

	var errs []error
	for _, v := range views {
		if _, err := e.sweep.Refunds.RefundAppointment(ctx, v.AppointmentID, v.PaidAmount, "cancel", "appointment cancelled"); err != nil {
			errs = append(errs, fmt.Errorf("appointment %d: %w", v.AppointmentID, err))
		}
	}
	return errors.Join(errs...)
}

// --------------------------------------------------
// Pass 5: refund dispatch
// --------------------------------------------------

func (e *Engine) dispatchRefunds(ctx context.Context) (int, error) {
	if e.sweep.Process == nil {
		return 0, nil
	}
	refunds, err := e.payments.ListPendingRefunds(ctx, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, rf := range refunds {
		// gateway failures stay on the refund row and are retried next run
		if err := e.sweep.Process.Execute(ctx, rf.ID); err != nil {
			log.Printf("[reconcile] refund %s: %v", rf.IdempotencyKey, err)
			continue
		}
		n++
	}

	// claims nobody finished: the dispatcher died between claim and outcome
	claimedBefore := e.clock.Now().Add(-e.cfg.StaleRefundAge)
	stale, err := e.payments.ListStaleRefunds(ctx, claimedBefore, e.cfg.BatchSize)
	if err != nil {
		return n, err
	}
	for _, rf := range stale {
		if err := e.sweep.Process.Reclaim(ctx, rf.ID, claimedBefore); err != nil {
			log.Printf("[reconcile] reclaim refund %s: %v", rf.IdempotencyKey, err)
			continue
		}
		n++
	}
	return n, nil
}

// --------------------------------------------------
// Pass 4: daily report
// --------------------------------------------------

// BuildReport aggregates the day containing now. It reads only.
func (e *Engine) BuildReport(ctx context.Context, now time.Time) (*domain.Report, error) {
	from, to := timezone.DayBounds(now, e.cfg.Location)
	r := &domain.Report{
		Date:        now.In(e.cfg.Location).Format("2006-01-02"),
		GeneratedAt: now,
	}

	byStatus, err := e.repo.CountAppointmentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	r.AppointmentsByStatus = make(map[string]int64, len(byStatus))
	for code, n := range byStatus {
		r.AppointmentsByStatus[apptDomain.Status(code).String()] = n
	}
	r.UnpaidBalanceBacklog = byStatus[int(apptDomain.StatusCompletedWithUnpaidBalance)]

	if r.AppointmentsCreated, err = e.repo.CountAppointmentsCreated(ctx, from, to); err != nil {
		return nil, err
	}
	if r.AutoCancelled, err = e.repo.CountAutoCancelled(ctx, from, to); err != nil {
		return nil, err
	}
	if r.IntentsByStatus, err = e.repo.CountIntentsByStatus(ctx, from, to); err != nil {
		return nil, err
	}
	if r.CapturedTotal, err = e.repo.SumCaptured(ctx, from, to); err != nil {
		return nil, err
	}
	if r.RefundsByStatus, err = e.repo.CountRefundsByStatus(ctx); err != nil {
		return nil, err
	}
	if r.RefundedTotal, err = e.repo.SumRefunds(ctx, []string{string(payDomain.RefundCompleted)}); err != nil {
		return nil, err
	}
	if r.RefundPendingTotal, err = e.repo.SumRefunds(ctx, []string{
		string(payDomain.RefundPending),
		string(payDomain.RefundProcessing),
		string(payDomain.RefundFailed),
	}); err != nil {
		return nil, err
	}
	if r.StaleRefunds, err = e.repo.CountStaleRefunds(ctx, now.Add(-e.cfg.StaleRefundAge)); err != nil {
		return nil, err
	}

	views, err := e.repo.ListPaymentViews(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if needsResync(v) {
			r.PaymentMismatches++
		}
	}

	r.Warnings = domain.Evaluate(r, e.cfg)
	if r.Warnings == nil {
		r.Warnings = []domain.Warning{}
	}
	return r, nil
}

// SaveReport builds the day's report and upserts it; one row per day.
func (e *Engine) SaveReport(ctx context.Context, now time.Time) (*models.ReconciliationReport, error) {
	r, err := e.BuildReport(ctx, now)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	warnings, err := json.Marshal(r.Warnings)
	if err != nil {
		return nil, err
	}

	rep, err := e.repo.FindReport(ctx, r.Date)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		rep = &models.ReconciliationReport{ReportDate: r.Date}
	}
	rep.GeneratedAt = now
	rep.Body = datatypes.JSON(body)
	rep.Warnings = datatypes.JSON(warnings)

	if e.archive != nil {
		key := fmt.Sprintf("reconciliation/%s.json", r.Date)
		if stored, err := e.archive.Put(ctx, key, "application/json", body); err != nil {
			log.Printf("[reconcile] archive %s: %v", key, err)
		} else {
			rep.ArchiveKey = stored
		}
	}

	for _, w := range r.Warnings {
		log.Printf("[reconcile] warning %s: %s", w.Code, w.Message)
	}

	if err := e.repo.SaveReport(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Report returns the stored report for a day (yyyy-mm-dd).
func (e *Engine) Report(ctx context.Context, date string) (*models.ReconciliationReport, error) {
	rep, err := e.repo.FindReport(ctx, date)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, httperr.ErrNotFound("reconciliation_report")
	}
	return rep, nil
}
