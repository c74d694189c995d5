package ledger

import "errors"

var (
	// ErrEmptyAccountID is returned when an account id is empty.
	ErrEmptyAccountID = errors.New("ledger: empty account id")
	// ErrAccountNotFound is returned when posting to or reading an unknown account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrInvalidAmount is returned when a posting amount is not positive.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	// ErrInvalidDirection is returned for an unknown posting direction.
	ErrInvalidDirection = errors.New("ledger: invalid direction")
	// ErrInsufficientFunds is returned when a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrNoPostings is returned when an empty posting batch is submitted.
	ErrNoPostings = errors.New("ledger: no postings")
	// ErrBalanceMismatch is returned when the cached balance disagrees with entries.
	ErrBalanceMismatch = errors.New("ledger: balance mismatch")
)
