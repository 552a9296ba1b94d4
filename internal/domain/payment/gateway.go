package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type CreatePaymentRequest struct {
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
	OrderInfo string
	ReturnURL string
	IPNURL    string
}

// CallbackResult is a gateway notification resolved to our intent code.
type CallbackResult struct {
	IntentCode     string
	Success        bool
	ResultCode     string
	CapturedAmount decimal.Decimal
	GatewayTxID    string
	Message        string
}

type RefundRequest struct {
	RefundKey   string
	IntentCode  string
	GatewayTxID string
	Amount      decimal.Decimal
	Reason      string
}

// Gateway is one payment provider. Callbacks are delivered at least once.
type Gateway interface {
	Name() string

	CreatePayment(ctx context.Context, req CreatePaymentRequest) (string, error)

	VerifyCallback(fields map[string]string, signature string) bool

	// ResolveCallback turns verified callback fields into a result. Some
	// providers only send an id, so this may call the provider.
	ResolveCallback(ctx context.Context, fields map[string]string) (*CallbackResult, error)

	Refund(ctx context.Context, req RefundRequest) (string, error)
}

type Registry map[string]Gateway

func NewRegistry(gws ...Gateway) Registry {
	r := Registry{}
	for _, g := range gws {
		if g != nil {
			r[g.Name()] = g
		}
	}
	return r
}

func (r Registry) Get(name string) (Gateway, error) {
	if g, ok := r[name]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("payment gateway %q not configured", name)
}
