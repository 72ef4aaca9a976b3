/*
ledger.go - Leave balance ledger

PURPOSE:
  The Ledger is the single authority over leave balances. Every debit
  for approved vacation, every credit for a cancelled one and every HR
  override is an appended transaction. Balance is always computed by
  summing transactions; there is no balance column to drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. NO DEDUPLICATION: the caller invokes Debit/Credit exactly once per
     logical event. The leave lifecycle guarantees this with
     compare-and-set on the request row inside the same storage transaction.
  3. NO LOWER BOUND: negative balances are valid (leave taken in advance).

EXAMPLE FLOW:
  1. Employee provisioned with 22 days: TxGrant +22
  2. Vacation over 5 business days approved: TxConsumption -5
  3. Vacation cancelled: TxReversal +5
  Balance: 22

SEE ALSO:
  - store.go: Low-level persistence interface
  - timeoff/request.go: The only caller of Debit and Credit
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Append-only balance log
// =============================================================================

// Reference ties a ledger entry to what caused it.
type Reference struct {
	RequestID string
	Reason    string
	Actor     EmployeeID
}

type Ledger interface {
	// Debit subtracts days from the balance. days must be positive.
	Debit(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error)

	// Credit adds days back. days must be positive.
	Credit(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error)

	// Grant records an entitlement such as the opening balance.
	Grant(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error)

	// Adjust applies a signed HR override. A reason is mandatory.
	Adjust(ctx context.Context, employeeID EmployeeID, delta Amount, ref Reference) (Transaction, error)

	// Balance sums all transactions of the employee.
	Balance(ctx context.Context, employeeID EmployeeID) (Amount, error)

	Transactions(ctx context.Context, employeeID EmployeeID) ([]Transaction, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
	Clock Clock
}

func NewLedger(store Store, clock Clock) *DefaultLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DefaultLedger{Store: store, Clock: clock}
}

func (l *DefaultLedger) Debit(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error) {
	if !days.IsPositive() {
		return Transaction{}, &ValidationError{Field: "days", Message: "debit must be positive"}
	}
	return l.append(ctx, employeeID, days.Neg(), TxConsumption, ref)
}

func (l *DefaultLedger) Credit(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error) {
	if !days.IsPositive() {
		return Transaction{}, &ValidationError{Field: "days", Message: "credit must be positive"}
	}
	return l.append(ctx, employeeID, days, TxReversal, ref)
}

func (l *DefaultLedger) Grant(ctx context.Context, employeeID EmployeeID, days Amount, ref Reference) (Transaction, error) {
	if days.IsNegative() {
		return Transaction{}, &ValidationError{Field: "days", Message: "grant cannot be negative"}
	}
	return l.append(ctx, employeeID, days, TxGrant, ref)
}

func (l *DefaultLedger) Adjust(ctx context.Context, employeeID EmployeeID, delta Amount, ref Reference) (Transaction, error) {
	if delta.IsZero() {
		return Transaction{}, &ValidationError{Field: "delta", Message: "adjustment cannot be zero"}
	}
	if ref.Reason == "" {
		return Transaction{}, &ValidationError{Field: "reason", Message: "adjustment requires a reason"}
	}
	return l.append(ctx, employeeID, delta, TxAdjustment, ref)
}

func (l *DefaultLedger) append(ctx context.Context, employeeID EmployeeID, delta Amount, typ TransactionType, ref Reference) (Transaction, error) {
	if employeeID == "" {
		return Transaction{}, &ValidationError{Field: "employee_id", Message: "required"}
	}
	tx := Transaction{
		ID:          TransactionID(uuid.NewString()),
		EmployeeID:  employeeID,
		Delta:       delta,
		Type:        typ,
		ReferenceID: ref.RequestID,
		Reason:      ref.Reason,
		CreatedBy:   ref.Actor,
		CreatedAt:   l.Clock.Now().Truncate(time.Microsecond),
	}
	if err := l.Store.Append(ctx, tx); err != nil {
		return Transaction{}, WrapStorage("append ledger transaction", err)
	}
	return tx, nil
}

func (l *DefaultLedger) Balance(ctx context.Context, employeeID EmployeeID) (Amount, error) {
	txs, err := l.Store.Load(ctx, employeeID)
	if err != nil {
		return Amount{}, WrapStorage("load ledger", err)
	}
	return SumTransactions(txs), nil
}

func (l *DefaultLedger) Transactions(ctx context.Context, employeeID EmployeeID) ([]Transaction, error) {
	txs, err := l.Store.Load(ctx, employeeID)
	if err != nil {
		return nil, WrapStorage("load ledger", err)
	}
	return txs, nil
}

// SumTransactions folds deltas into a balance in days.
func SumTransactions(txs []Transaction) Amount {
	balance := NewAmountFromInt(0, UnitDays)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance
}
