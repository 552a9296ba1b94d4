package payment

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/audit"
	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/timezone"
)

// ======================================================
// INPUT
// ======================================================

type IssueIntentInput struct {
	CustomerID     uint
	AppointmentID  *uint
	Amount         decimal.Decimal
	TTL            time.Duration
	IdempotencyKey *string
	Provider       string
	OrderInfo      string
	UserID         *uint
}

// ======================================================
// USE CASE
// ======================================================

type IssueIntent struct {
	repo      domain.Repository
	audit     *audit.Dispatcher
	clock     timezone.Clock
	gateways  domain.Registry
	cache     KeyCache
	currency  string
	ttl       time.Duration
	returnURL string
	ipnURL    string
}

type IssueConfig struct {
	Currency  string
	TTL       time.Duration
	ReturnURL string
	// IPNBaseURL gets "/<provider>" appended for the callback address.
	IPNBaseURL string
}

func NewIssueIntent(
	repo domain.Repository,
	audit *audit.Dispatcher,
	clock timezone.Clock,
	gateways domain.Registry,
	cache KeyCache,
	cfg IssueConfig,
) *IssueIntent {
	return &IssueIntent{
		repo:      repo,
		audit:     audit,
		clock:     clock,
		gateways:  gateways,
		cache:     cache,
		currency:  cfg.Currency,
		ttl:       cfg.TTL,
		returnURL: cfg.ReturnURL,
		ipnURL:    cfg.IPNBaseURL,
	}
}

// ======================================================
// EXECUTE
// ======================================================

// Execute commits a Pending intent, then asks the gateway for a payment
// URL. A reused idempotency key returns the intent it created first.
func (uc *IssueIntent) Execute(
	ctx context.Context,
	in IssueIntentInput,
) (*models.PaymentIntent, error) {

	ctx, span := tracer.Start(ctx, "payment.issue")
	defer span.End()

	// --------------------------------------------------
	// 1. Idempotency
	// --------------------------------------------------
	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		if pi, err := uc.findByKey(ctx, *in.IdempotencyKey); err != nil || pi != nil {
			if pi != nil && pi.CustomerID != in.CustomerID {
				return nil, httperr.ErrBusiness("idempotency_key_conflict")
			}
			return pi, err
		}
	} else {
		in.IdempotencyKey = nil
	}

	// --------------------------------------------------
	// 2. Validation
	// --------------------------------------------------
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, httperr.Wrap(domain.ErrNothingToPay, "nothing_to_pay", "amount must be positive")
	}
	gw, err := uc.gateways.Get(in.Provider)
	if err != nil {
		return nil, httperr.ErrBusinessf("unknown_provider", "%v", err)
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = uc.ttl
	}

	// --------------------------------------------------
	// 3. Pending intent
	// --------------------------------------------------
	now := uc.clock.Now()
	var pi *models.PaymentIntent

	err = uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		code, err := domain.GenerateIntentCode(ctx, now, tx.IntentCodeExists)
		if err != nil {
			return err
		}
		pi = &models.PaymentIntent{
			Code:           code,
			CustomerID:     in.CustomerID,
			AppointmentID:  in.AppointmentID,
			Amount:         amount,
			CapturedAmount: decimal.Zero,
			RefundedAmount: decimal.Zero,
			Currency:       uc.currency,
			Status:         string(domain.IntentPending),
			ExpiresAt:      now.Add(ttl),
			IdempotencyKey: in.IdempotencyKey,
			Provider:       gw.Name(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.CreateIntent(ctx, pi)
	})
	if err != nil {
		if in.IdempotencyKey != nil && httperr.IsUniqueViolation(err) {
			// lost a race on the same key
			return uc.findByKey(ctx, *in.IdempotencyKey)
		}
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment_intent.code", pi.Code))

	if in.IdempotencyKey != nil && uc.cache != nil {
		if err := uc.cache.Remember(ctx, *in.IdempotencyKey, pi.ID); err != nil {
			log.Printf("[payment] cache key for %s: %v", pi.Code, err)
		}
	}

	// --------------------------------------------------
	// 4. Gateway, outside any transaction
	// --------------------------------------------------
	url, gwErr := gw.CreatePayment(ctx, domain.CreatePaymentRequest{
		PaymentID: pi.Code,
		Amount:    pi.Amount,
		Currency:  pi.Currency,
		OrderInfo: in.OrderInfo,
		ReturnURL: uc.returnURL,
		IPNURL:    uc.ipnURL + "/" + gw.Name(),
	})

	// The caller may have gone away; the intent must still be settled.
	bg := context.WithoutCancel(ctx)
	if gwErr != nil {
		log.Printf("[payment] gateway %s create %s: %v", gw.Name(), pi.Code, gwErr)
		uc.failAfterGatewayError(bg, pi.ID, gwErr)
		span.RecordError(gwErr)
		return nil, httperr.ErrRetryable("gateway_unavailable", "payment gateway did not accept the request")
	}

	err = uc.repo.WithTx(bg, func(tx domain.Repository) error {
		locked, err := tx.LockIntent(bg, pi.ID)
		if err != nil {
			return err
		}
		locked.PaymentURL = url
		locked.UpdatedAt = uc.clock.Now()
		pi = locked
		return tx.UpdateIntent(bg, locked)
	})
	if err != nil {
		return nil, err
	}

	uc.audit.Dispatch(auditIntent(pi, in.UserID, "payment_intent_issued", map[string]any{
		"code":     pi.Code,
		"amount":   pi.Amount.StringFixed(2),
		"provider": pi.Provider,
	}))
	return pi, nil
}

func (uc *IssueIntent) findByKey(ctx context.Context, key string) (*models.PaymentIntent, error) {
	if uc.cache != nil {
		if id, ok, err := uc.cache.Lookup(ctx, key); err == nil && ok {
			if pi, err := uc.repo.GetIntent(ctx, id); err == nil {
				return pi, nil
			}
		} else if err != nil {
			log.Printf("[payment] cache lookup: %v", err)
		}
	}
	return uc.repo.FindIntentByIdempotencyKey(ctx, key)
}

func (uc *IssueIntent) failAfterGatewayError(ctx context.Context, id uint, cause error) {
	err := uc.repo.WithTx(ctx, func(tx domain.Repository) error {
		pi, err := tx.LockIntent(ctx, id)
		if err != nil {
			return err
		}
		changed, err := domain.Fail(pi, truncate("gateway: "+cause.Error(), 255), uc.clock.Now())
		if err != nil || !changed {
			return err
		}
		return tx.UpdateIntent(ctx, pi)
	})
	if err != nil {
		log.Printf("[payment] marking intent %d failed: %v", id, err)
	}
}
