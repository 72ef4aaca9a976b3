package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workday/generic"
	"github.com/warp/workday/store/memory"
)

func days(n float64) generic.Amount { return generic.NewAmount(n, generic.UnitDays) }

func TestLedger_BalanceIsSumOfTransactions(t *testing.T) {
	// GIVEN: an empty ledger
	ctx := context.Background()
	clock := generic.NewManualClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
	ledger := generic.NewLedger(memory.New(), clock)
	ref := generic.Reference{RequestID: "req-1", Actor: "hr-1"}

	// WHEN: granting, debiting, crediting and adjusting
	_, err := ledger.Grant(ctx, "emp-1", days(22), generic.Reference{Reason: "opening balance"})
	require.NoError(t, err)
	debit, err := ledger.Debit(ctx, "emp-1", days(5), ref)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, "emp-1", days(5), ref)
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, "emp-1", days(-1.5), generic.Reference{Reason: "carry-over correction", Actor: "hr-1"})
	require.NoError(t, err)

	// THEN: the balance is the running sum and every entry is kept
	balance, err := ledger.Balance(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(days(20.5)), "balance %s", balance)

	assert.Equal(t, generic.TxConsumption, debit.Type)
	assert.True(t, debit.Delta.Equal(days(-5)))
	assert.Equal(t, "req-1", debit.ReferenceID)
	assert.Equal(t, generic.EmployeeID("hr-1"), debit.CreatedBy)
	assert.Equal(t, clock.Now(), debit.CreatedAt)

	txs, err := ledger.Transactions(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, []generic.TransactionType{
		generic.TxGrant, generic.TxConsumption, generic.TxReversal, generic.TxAdjustment,
	}, []generic.TransactionType{txs[0].Type, txs[1].Type, txs[2].Type, txs[3].Type})
}

func TestLedger_NoLowerBound(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(memory.New(), nil)

	_, err := ledger.Debit(ctx, "emp-1", days(3), generic.Reference{RequestID: "req-1"})
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(days(-3)))
}

func TestLedger_RejectsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(memory.New(), nil)

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"zero debit", func() error { _, err := ledger.Debit(ctx, "emp-1", days(0), generic.Reference{}); return err }, "days"},
		{"negative credit", func() error { _, err := ledger.Credit(ctx, "emp-1", days(-1), generic.Reference{}); return err }, "days"},
		{"negative grant", func() error { _, err := ledger.Grant(ctx, "emp-1", days(-1), generic.Reference{}); return err }, "days"},
		{"zero adjustment", func() error {
			_, err := ledger.Adjust(ctx, "emp-1", days(0), generic.Reference{Reason: "x"})
			return err
		}, "delta"},
		{"adjustment without reason", func() error { _, err := ledger.Adjust(ctx, "emp-1", days(1), generic.Reference{}); return err }, "reason"},
		{"missing employee", func() error { _, err := ledger.Debit(ctx, "", days(1), generic.Reference{}); return err }, "employee_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *generic.ValidationError
			require.ErrorAs(t, tt.call(), &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.True(t, generic.IsClientError(vErr))
		})
	}

	txs, err := ledger.Transactions(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}
