package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, Evaluate(&Report{AppointmentsCreated: 10, AutoCancelled: 2}, cfg), "20% is at the threshold")

	ws := Evaluate(&Report{
		AppointmentsCreated:  10,
		AutoCancelled:        3,
		PaymentMismatches:    1,
		UnpaidBalanceBacklog: 10,
		StaleRefunds:         2,
	}, cfg)
	assert.Equal(t, []string{
		"high_auto_cancel_rate",
		"unresolved_payment_mismatch",
		"unpaid_balance_backlog",
		"stale_refunds",
	}, codes(ws))

	cfg.UnpaidBacklogWarn = 0
	assert.Empty(t, Evaluate(&Report{UnpaidBalanceBacklog: 500}, cfg))
}
