package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledger "rewardpool/internal/ledger/domain"
)

func credit(id string, amount string) ledger.Posting {
	return ledger.Posting{AccountID: id, Direction: ledger.Credit, Amount: decimal.RequireFromString(amount), RefType: "test", RefID: "t"}
}

func debit(id string, amount string) ledger.Posting {
	return ledger.Posting{AccountID: id, Direction: ledger.Debit, Amount: decimal.RequireFromString(amount), RefType: "test", RefID: "t"}
}

func TestPostUpdatesBalanceAndEntries(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	acct := ledger.NewOwnerAccount("owner-1", "BTC")
	_, err := l.EnsureAccount(ctx, acct)
	require.NoError(t, err)

	balance, err := l.Post(ctx, credit(acct.ID, "1.5"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")))

	balance, err = l.Post(ctx, debit(acct.ID, "0.25"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.25")))

	entries, err := l.Entries(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].BalanceAfter.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, entries[1].BalanceAfter.Equal(decimal.RequireFromString("1.25")))
	require.NoError(t, ledger.Reconcile(balance, entries))
}

func TestEnsureAccountKeepsExistingBalance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	acct := ledger.NewSystemAccount(ledger.KindTreasury, "BTC")
	_, err := l.EnsureAccount(ctx, acct)
	require.NoError(t, err)
	_, err = l.Post(ctx, credit(acct.ID, "2"))
	require.NoError(t, err)

	again, err := l.EnsureAccount(ctx, acct)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(2)))
}

func TestPostRejectsInvalidPostings(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	acct := ledger.NewOwnerAccount("owner-1", "BTC")
	_, err := l.EnsureAccount(ctx, acct)
	require.NoError(t, err)

	_, err = l.Post(ctx, credit(acct.ID, "0"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.Post(ctx, credit(acct.ID, "-1"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.Post(ctx, debit(acct.ID, "1"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	_, err = l.Post(ctx, credit("missing", "1"))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	entries, err := l.Entries(ctx, acct.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	owner := ledger.NewOwnerAccount("owner-1", "BTC")
	charity := ledger.NewSystemAccount(ledger.KindCharityPool, "BTC")
	for _, a := range []ledger.Account{owner, charity} {
		_, err := l.EnsureAccount(ctx, a)
		require.NoError(t, err)
	}

	_, err := l.PostAll(ctx, []ledger.Posting{
		credit(owner.ID, "1"),
		debit(charity.ID, "1"),
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err := l.Balance(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	entries, err := l.Entries(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := l.PostAll(ctx, []ledger.Posting{
		credit(owner.ID, "1"),
		credit(charity.ID, "0.5"),
		credit(owner.ID, "0.25"),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[2].BalanceAfter.Equal(decimal.RequireFromString("1.25")))
}

func TestPostAllRejectsEmptyBatch(t *testing.T) {
	_, err := NewLedger().PostAll(context.Background(), nil)
	assert.ErrorIs(t, err, ledger.ErrNoPostings)
}

func TestConcurrentPostsToSharedAccount(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	charity := ledger.NewSystemAccount(ledger.KindCharityPool, "BTC")
	_, err := l.EnsureAccount(ctx, charity)
	require.NoError(t, err)

	const workers = 50
	const perWorker = 20
	owners := make([]ledger.Account, workers)
	for i := range owners {
		owners[i] = ledger.NewOwnerAccount(fmt.Sprintf("owner-%d", i), "BTC")
		_, err := l.EnsureAccount(ctx, owners[i])
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(owner ledger.Account) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := l.PostAll(ctx, []ledger.Posting{
					credit(owner.ID, "0.00000001"),
					credit(charity.ID, "0.00000001"),
				})
				assert.NoError(t, err)
			}
		}(owners[i])
	}
	wg.Wait()

	balance, err := l.Balance(ctx, charity.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.00001")), balance.String())

	entries, err := l.Entries(ctx, charity.ID)
	require.NoError(t, err)
	require.Len(t, entries, workers*perWorker)
	require.NoError(t, ledger.Reconcile(balance, entries))
}
