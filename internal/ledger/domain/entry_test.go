package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	ten := decimal.NewFromInt(10)
	cases := []struct {
		name    string
		balance decimal.Decimal
		locked  decimal.Decimal
		posting Posting
		want    decimal.Decimal
		err     error
	}{
		{"credit", ten, decimal.Zero, Posting{AccountID: "a", Direction: Credit, Amount: decimal.NewFromInt(2)}, decimal.NewFromInt(12), nil},
		{"debit", ten, decimal.Zero, Posting{AccountID: "a", Direction: Debit, Amount: decimal.NewFromInt(10)}, decimal.Zero, nil},
		{"overdraft", ten, decimal.Zero, Posting{AccountID: "a", Direction: Debit, Amount: decimal.NewFromInt(11)}, ten, ErrInsufficientFunds},
		{"locked", ten, decimal.NewFromInt(5), Posting{AccountID: "a", Direction: Debit, Amount: decimal.NewFromInt(6)}, ten, ErrInsufficientFunds},
		{"zero amount", ten, decimal.Zero, Posting{AccountID: "a", Direction: Credit, Amount: decimal.Zero}, ten, ErrInvalidAmount},
		{"bad direction", ten, decimal.Zero, Posting{AccountID: "a", Direction: "sideways", Amount: decimal.NewFromInt(1)}, ten, ErrInvalidDirection},
		{"no account", ten, decimal.Zero, Posting{Direction: Credit, Amount: decimal.NewFromInt(1)}, ten, ErrEmptyAccountID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(tc.balance, tc.locked, tc.posting)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestReconcile(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := Posting{AccountID: "a", Direction: Credit, Amount: decimal.NewFromInt(5)}
	p2 := Posting{AccountID: "a", Direction: Debit, Amount: decimal.NewFromInt(2)}
	entries := []Entry{
		NewEntry("1", p1, decimal.NewFromInt(5), at),
		NewEntry("2", p2, decimal.NewFromInt(3), at),
	}
	require.NoError(t, Reconcile(decimal.NewFromInt(3), entries))
	assert.ErrorIs(t, Reconcile(decimal.NewFromInt(4), entries), ErrBalanceMismatch)

	entries[1].BalanceAfter = decimal.NewFromInt(4)
	assert.ErrorIs(t, Reconcile(decimal.NewFromInt(4), entries), ErrBalanceMismatch)
}

func TestLockOrderIsSortedAndDistinct(t *testing.T) {
	got := LockOrder([]Posting{{AccountID: "treasury:BTC"}, {AccountID: "owner:b:BTC"}, {AccountID: "charity_pool:BTC"}, {AccountID: "owner:b:BTC"}})
	assert.Equal(t, []string{"charity_pool:BTC", "owner:b:BTC", "treasury:BTC"}, got)
}

func TestAccountIDs(t *testing.T) {
	assert.Equal(t, "owner:o-1:BTC", OwnerAccountID("o-1", "BTC"))
	assert.Equal(t, "charity_pool:BTC", SystemAccountID(KindCharityPool, "BTC"))
}
