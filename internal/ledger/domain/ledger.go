package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger is the append-only entry store with derived balances.
// Each Post and PostAll call is one atomic unit. Concurrent posts to the same
// account are serialized; posts to different accounts are independent.
type Ledger interface {
	EnsureAccount(ctx context.Context, account Account) (*Account, error)
	Account(ctx context.Context, accountID string) (*Account, error)
	Post(ctx context.Context, posting Posting) (decimal.Decimal, error)
	PostAll(ctx context.Context, postings []Posting) ([]Entry, error)
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Entries(ctx context.Context, accountID string) ([]Entry, error)
}

// LockOrder returns the distinct account ids of postings in lock order.
func LockOrder(postings []Posting) []string {
	seen := make(map[string]struct{}, len(postings))
	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		if _, ok := seen[p.AccountID]; ok {
			continue
		}
		seen[p.AccountID] = struct{}{}
		ids = append(ids, p.AccountID)
	}
	sort.Strings(ids)
	return ids
}
