package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/payment"
)

// SandboxSuccess is the result code the sandbox reports for a capture.
const SandboxSuccess = "00"

// signedFields are the callback fields covered by the sandbox signature.
var signedFields = []string{"amount", "code", "result", "txn"}

// Sandbox is a local gateway with HMAC-signed callbacks. It never leaves
// the process and is what tests and dev environments pay through.
type Sandbox struct {
	secret  []byte
	baseURL string

	mu        sync.Mutex
	createErr error
	refundErr error
	refunds   []domain.RefundRequest
}

func NewSandbox(secret, baseURL string) *Sandbox {
	return &Sandbox{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Sandbox) Name() string { return "sandbox" }

// FailWith makes later calls fail. Nil restores normal behaviour.
func (s *Sandbox) FailWith(createErr, refundErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = createErr
	s.refundErr = refundErr
}

// Refunds returns the refunds the sandbox accepted, in order.
func (s *Sandbox) Refunds() []domain.RefundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RefundRequest(nil), s.refunds...)
}

func (s *Sandbox) CreatePayment(_ context.Context, req domain.CreatePaymentRequest) (string, error) {
	s.mu.Lock()
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("code", req.PaymentID)
	q.Set("amount", req.Amount.StringFixed(2))
	q.Set("currency", req.Currency)
	if req.ReturnURL != "" {
		q.Set("return", req.ReturnURL)
	}
	if req.IPNURL != "" {
		q.Set("ipn", req.IPNURL)
	}
	return fmt.Sprintf("%s/sandbox/pay?%s", s.baseURL, q.Encode()), nil
}

// Sign returns the signature the sandbox attaches to a callback.
func (s *Sandbox) Sign(fields map[string]string) string {
	keys := make([]string, 0, len(signedFields))
	for _, k := range signedFields {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Sandbox) VerifyCallback(fields map[string]string, signature string) bool {
	if signature == "" || fields["code"] == "" {
		return false
	}
	want := s.Sign(fields)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

func (s *Sandbox) ResolveCallback(_ context.Context, fields map[string]string) (*domain.CallbackResult, error) {
	res := &domain.CallbackResult{
		IntentCode:  fields["code"],
		ResultCode:  fields["result"],
		GatewayTxID: fields["txn"],
		Success:     fields["result"] == SandboxSuccess,
		Message:     fields["message"],
	}
	if res.IntentCode == "" {
		return nil, errors.New("sandbox callback without code")
	}
	if res.Success {
		amount, err := decimal.NewFromString(fields["amount"])
		if err != nil {
			return nil, fmt.Errorf("sandbox amount: %w", err)
		}
		res.CapturedAmount = amount
	}
	return res, nil
}

func (s *Sandbox) Refund(_ context.Context, req domain.RefundRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refundErr != nil {
		return "", s.refundErr
	}
	s.refunds = append(s.refunds, req)
	return "rf_" + uuid.NewString(), nil
}

var _ domain.Gateway = (*Sandbox)(nil)
