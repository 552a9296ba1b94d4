package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/mercadopago/sdk-go/pkg/refund"
	"github.com/shopspring/decimal"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
)

// Callback field names the webhook handler fills for MercadoPago.
const (
	MPFieldDataID    = "data.id"
	MPFieldRequestID = "x-request-id"
)

type MercadoPago struct {
	preferences preference.Client
	payments    payment.Client
	refunds     refund.Client
	secret      []byte
}

func NewMercadoPago(accessToken, webhookSecret string) (*MercadoPago, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &MercadoPago{
		preferences: preference.NewClient(cfg),
		payments:    payment.NewClient(cfg),
		refunds:     refund.NewClient(cfg),
		secret:      []byte(webhookSecret),
	}, nil
}

func (m *MercadoPago) Name() string { return "mercadopago" }

func (m *MercadoPago) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (string, error) {
	title := req.OrderInfo
	if title == "" {
		title = "Service appointment " + req.PaymentID
	}

	res, err := m.preferences.Create(ctx, preference.Request{
		ExternalReference: req.PaymentID,
		NotificationURL:   req.IPNURL,
		Items: []preference.ItemRequest{{
			ID:         req.PaymentID,
			Title:      title,
			Quantity:   1,
			UnitPrice:  req.Amount.InexactFloat64(),
			CurrencyID: req.Currency,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("mercadopago preference: %w", err)
	}
	return res.InitPoint, nil
}

// VerifyCallback checks the x-signature header ("ts=...,v1=...") against
// the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (m *MercadoPago) VerifyCallback(fields map[string]string, signature string) bool {
	if len(m.secret) == 0 || signature == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	var manifest strings.Builder
	if id := fields[MPFieldDataID]; id != "" {
		manifest.WriteString("id:" + strings.ToLower(id) + ";")
	}
	if rid := fields[MPFieldRequestID]; rid != "" {
		manifest.WriteString("request-id:" + rid + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(manifest.String()))
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(v1))
}

// ResolveCallback fetches the payment; the notification only carries its id.
func (m *MercadoPago) ResolveCallback(ctx context.Context, fields map[string]string) (*domain.CallbackResult, error) {
	id, err := strconv.Atoi(fields[MPFieldDataID])
	if err != nil {
		return nil, fmt.Errorf("mercadopago payment id %q: %w", fields[MPFieldDataID], err)
	}

	p, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago payment %d: %w", id, err)
	}

	res := &domain.CallbackResult{
		IntentCode:  p.ExternalReference,
		ResultCode:  p.Status,
		GatewayTxID: strconv.Itoa(p.ID),
		Message:     p.StatusDetail,
	}
	switch p.Status {
	case "approved":
		res.Success = true
		res.CapturedAmount = decimal.NewFromFloat(p.TransactionAmount)
	case "pending", "in_process", "authorized":
		return nil, fmt.Errorf("mercadopago payment %d still %s", id, p.Status)
	}
	return res, nil
}

func (m *MercadoPago) Refund(ctx context.Context, req domain.RefundRequest) (string, error) {
	id, err := strconv.Atoi(req.GatewayTxID)
	if err != nil {
		return "", fmt.Errorf("mercadopago payment id %q: %w", req.GatewayTxID, err)
	}

	res, err := m.refunds.CreatePartialRefund(ctx, id, req.Amount.InexactFloat64())
	if err != nil {
		return "", fmt.Errorf("mercadopago refund: %w", err)
	}
	return strconv.Itoa(res.ID), nil
}

var _ domain.Gateway = (*MercadoPago)(nil)
