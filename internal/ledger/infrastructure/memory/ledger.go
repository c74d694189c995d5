package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"

	ledger "rewardpool/internal/ledger/domain"
)

type accountState struct {
	mu      sync.Mutex
	account ledger.Account
	entries []ledger.Entry
}

// Ledger is an in-memory ledger. Each account has its own mutex; multi-leg
// posts take the account locks in sorted id order.
type Ledger struct {
	accounts *xsync.Map[string, *accountState]
	clock    clockwork.Clock
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

// NewLedger constructs an empty in-memory ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: xsync.NewMap[string, *accountState](),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureAccount creates the account when missing and returns its current state.
func (l *Ledger) EnsureAccount(ctx context.Context, account ledger.Account) (*ledger.Account, error) {
	_ = ctx
	if account.ID == "" {
		return nil, ledger.ErrEmptyAccountID
	}
	now := l.clock.Now().UTC()
	account.Balance = decimal.Zero
	account.Locked = decimal.Zero
	account.CreatedAt = now
	account.UpdatedAt = now
	state, _ := l.accounts.LoadOrStore(account.ID, &accountState{account: account})

	state.mu.Lock()
	defer state.mu.Unlock()
	current := state.account
	return &current, nil
}

// Account returns a snapshot of the account.
func (l *Ledger) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	_ = ctx
	state, ok := l.accounts.Load(accountID)
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	current := state.account
	return &current, nil
}

// Post applies a single posting and returns the new balance.
func (l *Ledger) Post(ctx context.Context, posting ledger.Posting) (decimal.Decimal, error) {
	entries, err := l.PostAll(ctx, []ledger.Posting{posting})
	if err != nil {
		return decimal.Zero, err
	}
	return entries[0].BalanceAfter, nil
}

// PostAll applies all postings or none of them.
func (l *Ledger) PostAll(ctx context.Context, postings []ledger.Posting) ([]ledger.Entry, error) {
	if len(postings) == 0 {
		return nil, ledger.ErrNoPostings
	}
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := ledger.LockOrder(postings)
	states := make(map[string]*accountState, len(order))
	for _, id := range order {
		state, ok := l.accounts.Load(id)
		if !ok {
			return nil, ledger.ErrAccountNotFound
		}
		states[id] = state
	}
	for _, id := range order {
		states[id].mu.Lock()
	}
	defer func() {
		for i := len(order) - 1; i >= 0; i-- {
			states[order[i]].mu.Unlock()
		}
	}()

	balances := make(map[string]decimal.Decimal, len(order))
	for _, id := range order {
		balances[id] = states[id].account.Balance
	}
	now := l.clock.Now().UTC()
	entries := make([]ledger.Entry, 0, len(postings))
	for _, p := range postings {
		next, err := ledger.Apply(balances[p.AccountID], states[p.AccountID].account.Locked, p)
		if err != nil {
			return nil, err
		}
		balances[p.AccountID] = next
		entries = append(entries, ledger.NewEntry(uuid.NewString(), p, next, now))
	}

	for _, entry := range entries {
		state := states[entry.AccountID]
		state.entries = append(state.entries, entry)
	}
	for _, id := range order {
		states[id].account.Balance = balances[id]
		states[id].account.UpdatedAt = now
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

// Entries returns the account's entries in posting order.
func (l *Ledger) Entries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	_ = ctx
	state, ok := l.accounts.Load(accountID)
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]ledger.Entry, len(state.entries))
	copy(out, state.entries)
	return out, nil
}
