package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a posting.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Posting is a request to move an amount on one account.
type Posting struct {
	AccountID string
	Direction Direction
	Amount    decimal.Decimal
	RefType   string
	RefID     string
}

// Validate checks a posting before it is applied.
func (p Posting) Validate() error {
	if p.AccountID == "" {
		return ErrEmptyAccountID
	}
	if p.Direction != Credit && p.Direction != Debit {
		return ErrInvalidDirection
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Entry is an append-only ledger line.
type Entry struct {
	ID           string
	AccountID    string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	BalanceAfter decimal.Decimal
	RefType      string
	RefID        string
	CreatedAt    time.Time
}

// Apply returns the balance after the posting, rejecting overdrafts of the
// available (unlocked) balance.
func Apply(balance, locked decimal.Decimal, p Posting) (decimal.Decimal, error) {
	if err := p.Validate(); err != nil {
		return balance, err
	}
	if p.Direction == Credit {
		return balance.Add(p.Amount), nil
	}
	if balance.Sub(locked).LessThan(p.Amount) {
		return balance, ErrInsufficientFunds
	}
	return balance.Sub(p.Amount), nil
}

// NewEntry builds the entry recording a posting.
func NewEntry(id string, p Posting, balanceAfter decimal.Decimal, at time.Time) Entry {
	entry := Entry{
		ID:           id,
		AccountID:    p.AccountID,
		Debit:        decimal.Zero,
		Credit:       decimal.Zero,
		BalanceAfter: balanceAfter,
		RefType:      p.RefType,
		RefID:        p.RefID,
		CreatedAt:    at,
	}
	if p.Direction == Credit {
		entry.Credit = p.Amount
	} else {
		entry.Debit = p.Amount
	}
	return entry
}

// Reconcile checks that the entries form a running total ending at balance.
func Reconcile(balance decimal.Decimal, entries []Entry) error {
	running := decimal.Zero
	for _, entry := range entries {
		running = running.Add(entry.Credit).Sub(entry.Debit)
		if !running.Equal(entry.BalanceAfter) {
			return ErrBalanceMismatch
		}
	}
	if !running.Equal(balance) {
		return ErrBalanceMismatch
	}
	return nil
}
