package errs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitError_UnwrapsToSentinel(t *testing.T) {
	err := &RateLimitError{RetryAfter: 5 * time.Second, Message: "slow down"}
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestOrderError_UnwrapsToSentinel(t *testing.T) {
	err := &OrderError{Code: -2011, Message: "unknown order"}
	assert.True(t, errors.Is(err, ErrExchangeBusiness))
	assert.True(t, IsUnknownOrder(err))
	assert.False(t, IsTimestampSkew(err))
}

func TestOrderError_TimestampSkew(t *testing.T) {
	err := &OrderError{Code: -1021, Message: "timestamp skew"}
	assert.True(t, IsTimestampSkew(err))
	assert.False(t, IsUnknownOrder(err))
}

func TestStateMachineError_UnwrapsToSentinel(t *testing.T) {
	err := &StateMachineError{Machine: "order", From: "NEW", To: "FILLED"}
	assert.True(t, errors.Is(err, ErrStateMachine))
	assert.Contains(t, err.Error(), "NEW -> FILLED")
}

func TestLedgerImbalanceError_UnwrapsToSentinel(t *testing.T) {
	err := &LedgerImbalanceError{EntryID: "e1", DebitTotal: "10", CreditTotal: "9"}
	assert.True(t, errors.Is(err, ErrLedgerImbalance))
}
