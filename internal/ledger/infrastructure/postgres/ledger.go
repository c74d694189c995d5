package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	ledger "rewardpool/internal/ledger/domain"
	"rewardpool/internal/observability/metrics"
)

// Ledger persists accounts and entries in Postgres. Every batch runs in one
// transaction holding row locks on its accounts in sorted id order.
type Ledger struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for entry timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewLedger constructs a Postgres ledger.
func NewLedger(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureAccount inserts the account if missing and returns the stored row.
func (l *Ledger) EnsureAccount(ctx context.Context, account ledger.Account) (*ledger.Account, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if account.ID == "" {
		return nil, ledger.ErrEmptyAccountID
	}
	now := l.clock.Now().UTC()
	_, err := l.db.ExecContext(ctx, `
INSERT INTO ledger_accounts (id, kind, owner_id, currency, balance, locked, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,0,$5,$5)
ON CONFLICT (id) DO NOTHING`,
		account.ID, string(account.Kind), nullableString(account.OwnerID), account.Currency, now)
	if err != nil {
		return nil, err
	}
	return l.Account(ctx, account.ID)
}

// Account loads an account.
func (l *Ledger) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	row := l.db.QueryRowContext(ctx, `
SELECT id, kind, owner_id, currency, balance, locked, created_at, updated_at
FROM ledger_accounts
WHERE id = $1`, accountID)
	return scanAccount(row)
}

// Post applies one posting and returns the new balance.
func (l *Ledger) Post(ctx context.Context, posting ledger.Posting) (decimal.Decimal, error) {
	entries, err := l.PostAll(ctx, []ledger.Posting{posting})
	if err != nil {
		return decimal.Zero, err
	}
	return entries[0].BalanceAfter, nil
}

// PostAll applies all postings in one transaction.
func (l *Ledger) PostAll(ctx context.Context, postings []ledger.Posting) ([]ledger.Entry, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	start := time.Now()
	entries, err := l.postAll(ctx, postings)
	metrics.ObserveLedgerPost(metrics.Result(err), time.Since(start))
	return entries, err
}

func (l *Ledger) postAll(ctx context.Context, postings []ledger.Posting) ([]ledger.Entry, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	entries, err := l.PostAllTx(ctx, tx, postings)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// PostAllTx applies postings inside the caller's transaction. Callers that
// commit other rows together with ledger legs use this directly.
func (l *Ledger) PostAllTx(ctx context.Context, tx *sql.Tx, postings []ledger.Posting) ([]ledger.Entry, error) {
	if tx == nil {
		return nil, errors.New("ledger repo: nil tx")
	}
	if len(postings) == 0 {
		return nil, ledger.ErrNoPostings
	}
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	order := ledger.LockOrder(postings)
	balances := make(map[string]decimal.Decimal, len(order))
	locked := make(map[string]decimal.Decimal, len(order))
	for _, id := range order {
		var balance, lockedAmount decimal.Decimal
		err := tx.QueryRowContext(ctx, `
SELECT balance, locked
FROM ledger_accounts
WHERE id = $1
FOR UPDATE`, id).Scan(&balance, &lockedAmount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		balances[id] = balance
		locked[id] = lockedAmount
	}

	now := l.clock.Now().UTC()
	entries := make([]ledger.Entry, 0, len(postings))
	for _, p := range postings {
		next, err := ledger.Apply(balances[p.AccountID], locked[p.AccountID], p)
		if err != nil {
			return nil, err
		}
		balances[p.AccountID] = next
		entry := ledger.NewEntry(uuid.NewString(), p, next, now)
		_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_entries (id, account_id, debit, credit, balance_after, ref_type, ref_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entry.ID, entry.AccountID, entry.Debit, entry.Credit, entry.BalanceAfter, entry.RefType, entry.RefID, entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	for _, id := range order {
		_, err := tx.ExecContext(ctx, `
UPDATE ledger_accounts
SET balance = $1, updated_at = $2
WHERE id = $3`, balances[id], now, id)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Balance returns the cached balance.
func (l *Ledger) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := l.Account(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Entries returns entries in posting order.
func (l *Ledger) Entries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if _, err := l.Account(ctx, accountID); err != nil {
		return nil, err
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, account_id, debit, credit, balance_after, ref_type, ref_id, created_at
FROM ledger_entries
WHERE account_id = $1
ORDER BY seq ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]ledger.Entry, 0)
	for rows.Next() {
		var entry ledger.Entry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Debit, &entry.Credit, &entry.BalanceAfter, &entry.RefType, &entry.RefID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		account ledger.Account
		kind    string
		ownerID sql.NullString
	)
	err := row.Scan(&account.ID, &kind, &ownerID, &account.Currency, &account.Balance, &account.Locked, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	account.Kind = ledger.AccountKind(kind)
	if ownerID.Valid {
		account.OwnerID = ownerID.String
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
