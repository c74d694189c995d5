package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies ledger accounts.
type AccountKind string

const (
	KindOwner            AccountKind = "owner"
	KindTreasury         AccountKind = "treasury"
	KindCharityPool      AccountKind = "charity_pool"
	KindReinvestmentPool AccountKind = "reinvestment_pool"
)

const accountIDSeparator = ":"

// Account holds a cached balance derived from its entries.
type Account struct {
	ID        string
	Kind      AccountKind
	OwnerID   string
	Currency  string
	Balance   decimal.Decimal
	Locked    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns balance minus locked balance.
func (a Account) Available() decimal.Decimal {
	return a.Balance.Sub(a.Locked)
}

// OwnerAccountID returns the account id of an owner's currency wallet.
func OwnerAccountID(ownerID, currency string) string {
	return string(KindOwner) + accountIDSeparator + ownerID + accountIDSeparator + currency
}

// SystemAccountID returns the account id of a system purpose account.
func SystemAccountID(kind AccountKind, currency string) string {
	return string(kind) + accountIDSeparator + currency
}

// NewOwnerAccount builds an empty owner account.
func NewOwnerAccount(ownerID, currency string) Account {
	return Account{
		ID:       OwnerAccountID(ownerID, currency),
		Kind:     KindOwner,
		OwnerID:  ownerID,
		Currency: currency,
	}
}

// NewSystemAccount builds an empty system account.
func NewSystemAccount(kind AccountKind, currency string) Account {
	return Account{
		ID:       SystemAccountID(kind, currency),
		Kind:     kind,
		Currency: currency,
	}
}
