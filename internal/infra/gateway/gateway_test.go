package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
)

func TestSandbox_SignAndVerify(t *testing.T) {
	s := NewSandbox("secret", "http://localhost:8080/")
	fields := map[string]string{
		"code":    "PI-20260302100000-000001",
		"amount":  "50.00",
		"result":  SandboxSuccess,
		"txn":     "TX1",
		"message": "not signed",
	}
	sig := s.Sign(fields)

	assert.True(t, s.VerifyCallback(fields, sig))
	assert.True(t, s.VerifyCallback(fields, strings.ToUpper(sig)), "hex case does not matter")

	fields["message"] = "changed"
	assert.True(t, s.VerifyCallback(fields, sig), "unsigned fields may change")

	fields["amount"] = "5000.00"
	assert.False(t, s.VerifyCallback(fields, sig))

	other := NewSandbox("other", "")
	fields["amount"] = "50.00"
	assert.False(t, other.VerifyCallback(fields, sig))
	assert.False(t, s.VerifyCallback(map[string]string{}, ""))
}

func TestSandbox_ResolveCallback(t *testing.T) {
	s := NewSandbox("secret", "")
	ctx := context.Background()

	res, err := s.ResolveCallback(ctx, map[string]string{"code": "PI-1", "amount": "12.50", "result": SandboxSuccess, "txn": "T"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.CapturedAmount.Equal(decimal.RequireFromString("12.5")))

	res, err = s.ResolveCallback(ctx, map[string]string{"code": "PI-1", "result": "51"})
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, err = s.ResolveCallback(ctx, map[string]string{"code": "PI-1", "amount": "abc", "result": SandboxSuccess})
	assert.Error(t, err)

	_, err = s.ResolveCallback(ctx, map[string]string{"result": SandboxSuccess})
	assert.Error(t, err)
}

func TestSandbox_CreateAndRefund(t *testing.T) {
	s := NewSandbox("secret", "http://localhost:8080/")
	ctx := context.Background()

	link, err := s.CreatePayment(ctx, domain.CreatePaymentRequest{
		PaymentID: "PI-1", Amount: decimal.RequireFromString("10"), Currency: "VND", ReturnURL: "http://r",
	})
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/sandbox/pay", u.Path)
	assert.Equal(t, "10.00", u.Query().Get("amount"))

	s.FailWith(errors.New("down"), errors.New("down"))
	_, err = s.CreatePayment(ctx, domain.CreatePaymentRequest{PaymentID: "PI-2"})
	assert.Error(t, err)
	_, err = s.Refund(ctx, domain.RefundRequest{RefundKey: "k"})
	assert.Error(t, err)
	assert.Empty(t, s.Refunds())

	s.FailWith(nil, nil)
	ref, err := s.Refund(ctx, domain.RefundRequest{RefundKey: "k", Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "rf_"))
	assert.Len(t, s.Refunds(), 1)
}

func TestMercadoPago_VerifyCallback(t *testing.T) {
	mp, err := NewMercadoPago("TEST-0000", "whsec")
	require.NoError(t, err)
	assert.Equal(t, "mercadopago", mp.Name())

	fields := map[string]string{MPFieldDataID: "123456", MPFieldRequestID: "req-1"}
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write([]byte("id:123456;request-id:req-1;ts:1700000000;"))
	sig := "ts=1700000000,v1=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, mp.VerifyCallback(fields, sig))
	assert.False(t, mp.VerifyCallback(fields, "ts=1700000001,v1="+hex.EncodeToString(mac.Sum(nil))))
	assert.False(t, mp.VerifyCallback(fields, "v1=abc"))

	unsigned, err := NewMercadoPago("TEST-0000", "")
	require.NoError(t, err)
	assert.False(t, unsigned.VerifyCallback(fields, sig), "no secret, no trust")
}

func TestRegistry(t *testing.T) {
	r := domain.NewRegistry(NewSandbox("s", ""), nil)
	_, err := r.Get("sandbox")
	assert.NoError(t, err)
	_, err = r.Get("stripe")
	assert.Error(t, err)
}
