package privacy

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inferloop/anonyguard/pkg/errors"
)

// BudgetTransaction records one noise release.
type BudgetTransaction struct {
	ID          string    `json:"id" yaml:"id"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	EpsilonUsed float64   `json:"epsilon_used" yaml:"epsilon_used"`
	Purpose     string    `json:"purpose" yaml:"purpose"`
	Columns     []string  `json:"columns" yaml:"columns"`
	DataSize    int       `json:"data_size" yaml:"data_size"`
}

// BudgetStatus provides current budget status information
type BudgetStatus struct {
	LimitEpsilon     float64 `json:"limit_epsilon" yaml:"limit_epsilon"`
	ConsumedEpsilon  float64 `json:"consumed_epsilon" yaml:"consumed_epsilon"`
	RemainingEpsilon float64 `json:"remaining_epsilon" yaml:"remaining_epsilon"`
	Utilization      float64 `json:"utilization" yaml:"utilization"`
	TransactionCount int     `json:"transaction_count" yaml:"transaction_count"`
	Unlimited        bool    `json:"unlimited" yaml:"unlimited"`
}

// CompositionRule defines how epsilon accumulates across releases
type CompositionRule interface {
	Compose(transactions []BudgetTransaction) float64
	GetName() string
}

// BasicComposition implements basic composition (simple summation)
type BasicComposition struct{}

func (bc *BasicComposition) Compose(transactions []BudgetTransaction) float64 {
	var total float64
	for _, tx := range transactions {
		total += tx.EpsilonUsed
	}
	return total
}

func (bc *BasicComposition) GetName() string {
	return "basic"
}

// BudgetLedger tracks epsilon spent by noise releases against an optional
// limit. It is bookkeeping only and makes no claim about the privacy of
// the combined releases.
type BudgetLedger struct {
	mu              sync.RWMutex
	limit           float64
	transactions    []BudgetTransaction
	compositionRule CompositionRule
}

// NewBudgetLedger creates a ledger. A zero limit disables the check.
func NewBudgetLedger(limit float64) (*BudgetLedger, error) {
	if math.IsNaN(limit) || math.IsInf(limit, 0) || limit < 0 {
		return nil, errors.NewParameterError(errors.CodeInvalidParameter,
			"budget epsilon must be a finite non-negative number").WithContext("budget_epsilon", limit)
	}
	return &BudgetLedger{
		limit:           limit,
		transactions:    make([]BudgetTransaction, 0),
		compositionRule: &BasicComposition{},
	}, nil
}

// CanSpend reports whether epsilon fits in the remaining budget.
func (b *BudgetLedger) CanSpend(epsilon float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.canSpendLocked(epsilon)
}

func (b *BudgetLedger) canSpendLocked(epsilon float64) bool {
	if b.limit == 0 {
		return true
	}
	return b.compositionRule.Compose(b.transactions)+epsilon <= b.limit+1e-12
}

// Spend records a release, or fails with PRIVACY_BUDGET_EXCEEDED without
// recording anything.
func (b *BudgetLedger) Spend(epsilon float64, purpose string, columns []string, dataSize int) (*BudgetTransaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.canSpendLocked(epsilon) {
		return nil, errors.NewPrivacyError(errors.CodePrivacyBudgetExceeded,
			"privacy budget exceeded").
			WithContext("requested", epsilon).
			WithContext("consumed", b.compositionRule.Compose(b.transactions)).
			WithContext("limit", b.limit)
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	tx := BudgetTransaction{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		EpsilonUsed: epsilon,
		Purpose:     purpose,
		Columns:     cols,
		DataSize:    dataSize,
	}
	b.transactions = append(b.transactions, tx)
	return &tx, nil
}

// Refund drops a recorded release whose output was never produced. It
// reports whether the transaction was found.
func (b *BudgetLedger) Refund(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, tx := range b.transactions {
		if tx.ID == id {
			b.transactions = append(b.transactions[:i], b.transactions[i+1:]...)
			return true
		}
	}
	return false
}

// Consumed returns the composed epsilon spent so far.
func (b *BudgetLedger) Consumed() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.compositionRule.Compose(b.transactions)
}

// Remaining returns the unspent budget, or +Inf when unlimited.
func (b *BudgetLedger) Remaining() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.remainingLocked()
}

func (b *BudgetLedger) remainingLocked() float64 {
	if b.limit == 0 {
		return math.Inf(1)
	}
	return math.Max(0, b.limit-b.compositionRule.Compose(b.transactions))
}

// Status returns a snapshot of the ledger.
func (b *BudgetLedger) Status() BudgetStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	consumed := b.compositionRule.Compose(b.transactions)
	status := BudgetStatus{
		LimitEpsilon:     b.limit,
		ConsumedEpsilon:  consumed,
		TransactionCount: len(b.transactions),
		Unlimited:        b.limit == 0,
	}
	if b.limit > 0 {
		status.RemainingEpsilon = b.remainingLocked()
		status.Utilization = consumed / b.limit
	}
	return status
}

// Transactions returns a copy of the recorded releases.
func (b *BudgetLedger) Transactions() []BudgetTransaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BudgetTransaction, len(b.transactions))
	copy(out, b.transactions)
	return out
}

// Reset forgets every transaction.
func (b *BudgetLedger) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transactions = make([]BudgetTransaction, 0)
}
