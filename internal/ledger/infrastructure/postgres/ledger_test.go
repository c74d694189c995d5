package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	ledger "rewardpool/internal/ledger/domain"
	platformpostgres "rewardpool/internal/platform/postgres"
)

func openLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	db, err := platformpostgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, platformpostgres.Migrate(ctx, db, zaptest.NewLogger(t)))

	currency := "T" + uuid.NewString()[:8]
	t.Cleanup(func() { cleanup(db, currency) })
	return NewLedger(db), currency
}

func cleanup(db *sql.DB, currency string) {
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE account_id IN (SELECT id FROM ledger_accounts WHERE currency = $1)`, currency)
	_, _ = db.ExecContext(ctx, `DELETE FROM ledger_accounts WHERE currency = $1`, currency)
}

func TestPostgresLedger_ConcurrentPostsAreSerialized(t *testing.T) {
	l, currency := openLedger(t)
	ctx := context.Background()
	treasury := ledger.NewSystemAccount(ledger.KindTreasury, currency)
	_, err := l.EnsureAccount(ctx, treasury)
	require.NoError(t, err)

	const workers, posts = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			owner := ledger.NewOwnerAccount(fmt.Sprintf("owner-%d", w), currency)
			if _, err := l.EnsureAccount(ctx, owner); err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < posts; i++ {
				_, err := l.PostAll(ctx, []ledger.Posting{
					{AccountID: owner.ID, Direction: ledger.Credit, Amount: decimal.RequireFromString("0.1"), RefType: "test", RefID: "r"},
					{AccountID: treasury.ID, Direction: ledger.Credit, Amount: decimal.RequireFromString("0.00000001"), RefType: "test", RefID: "r"},
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	balance, err := l.Balance(ctx, treasury.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.0000008")), balance.String())
	entries, err := l.Entries(ctx, treasury.ID)
	require.NoError(t, err)
	require.Len(t, entries, workers*posts)
	assert.NoError(t, ledger.Reconcile(balance, entries))
}

func TestPostgresLedger_FailedLegRollsBackBatch(t *testing.T) {
	l, currency := openLedger(t)
	ctx := context.Background()
	owner := ledger.NewOwnerAccount("owner-a", currency)
	charity := ledger.NewSystemAccount(ledger.KindCharityPool, currency)
	for _, a := range []ledger.Account{owner, charity} {
		_, err := l.EnsureAccount(ctx, a)
		require.NoError(t, err)
	}

	_, err := l.PostAll(ctx, []ledger.Posting{
		{AccountID: owner.ID, Direction: ledger.Credit, Amount: decimal.NewFromInt(5)},
		{AccountID: charity.ID, Direction: ledger.Debit, Amount: decimal.NewFromInt(1)},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err := l.Balance(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	entries, err := l.Entries(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = l.Post(ctx, ledger.Posting{AccountID: "owner:missing:" + currency, Direction: ledger.Credit, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
