package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/httperr"
)

func TestAdmit(t *testing.T) {
	assert.True(t, Admit(0, 1))
	assert.True(t, Admit(2, 3))
	assert.False(t, Admit(3, 3))
	assert.False(t, Admit(0, 0), "zero capacity never admits")

	be, ok := httperr.AsBusiness(ErrSlotFull())
	assert.True(t, ok)
	assert.True(t, be.Retryable)
}
