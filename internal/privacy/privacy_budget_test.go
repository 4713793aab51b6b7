package privacy

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonyguard/pkg/errors"
)

func TestBudgetLedgerLimit(t *testing.T) {
	ledger, err := NewBudgetLedger(2)
	require.NoError(t, err)

	assert.True(t, ledger.CanSpend(2))
	assert.False(t, ledger.CanSpend(2.5))

	tx, err := ledger.Spend(1.5, "add_noise", []string{"salary"}, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "add_noise", tx.Purpose)

	assert.InDelta(t, 1.5, ledger.Consumed(), 1e-12)
	assert.InDelta(t, 0.5, ledger.Remaining(), 1e-12)

	_, err = ledger.Spend(1, "add_noise", nil, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPrivacyBudgetExceeded)
	assert.InDelta(t, 1.5, ledger.Consumed(), 1e-12)

	_, err = ledger.Spend(0.5, "add_noise", nil, 100)
	require.NoError(t, err)

	status := ledger.Status()
	assert.Equal(t, 2.0, status.LimitEpsilon)
	assert.InDelta(t, 2.0, status.ConsumedEpsilon, 1e-12)
	assert.InDelta(t, 0.0, status.RemainingEpsilon, 1e-12)
	assert.InDelta(t, 1.0, status.Utilization, 1e-12)
	assert.Equal(t, 2, status.TransactionCount)
	assert.False(t, status.Unlimited)
}

func TestBudgetLedgerUnlimited(t *testing.T) {
	ledger, err := NewBudgetLedger(0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := ledger.Spend(10, "add_noise", nil, 1)
		require.NoError(t, err)
	}

	assert.True(t, math.IsInf(ledger.Remaining(), 1))
	assert.True(t, ledger.Status().Unlimited)
	assert.InDelta(t, 50, ledger.Consumed(), 1e-12)

	ledger.Reset()
	assert.Empty(t, ledger.Transactions())
	assert.Equal(t, 0.0, ledger.Consumed())
}

func TestBudgetLedgerRefund(t *testing.T) {
	ledger, err := NewBudgetLedger(1)
	require.NoError(t, err)

	first, err := ledger.Spend(0.4, "add_noise", nil, 1)
	require.NoError(t, err)
	second, err := ledger.Spend(0.6, "add_noise", nil, 1)
	require.NoError(t, err)
	assert.False(t, ledger.CanSpend(0.1))

	assert.True(t, ledger.Refund(second.ID))
	assert.False(t, ledger.Refund(second.ID))
	assert.InDelta(t, 0.4, ledger.Consumed(), 1e-12)
	assert.InDelta(t, 0.6, ledger.Status().RemainingEpsilon, 1e-12)

	txs := ledger.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, first.ID, txs[0].ID)
}

func TestBudgetLedgerRejectsInvalidLimit(t *testing.T) {
	for _, limit := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := NewBudgetLedger(limit)
		require.Error(t, err)
		assert.True(t, errors.IsParameterError(err))
	}
}

func TestBudgetLedgerConcurrentSpend(t *testing.T) {
	ledger, err := NewBudgetLedger(10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ledger.Spend(1, "add_noise", nil, 1)
		}()
	}
	wg.Wait()

	assert.Len(t, ledger.Transactions(), 10)
	assert.InDelta(t, 10, ledger.Consumed(), 1e-12)
}
