package distribution

import (
	"time"

	"github.com/shopspring/decimal"

	"rewardpool/internal/commitment"
	ledger "rewardpool/internal/ledger/domain"
)

// RefTypeDistribution tags ledger entries caused by a distribution.
const RefTypeDistribution = "distribution"

// Distribution is one (miner, period) outcome. It is created once and only
// updated to attach the proof and index after commit.
type Distribution struct {
	ID            string
	MinerID       string
	OwnerID       string
	Period        PeriodKey
	Gross         float64
	EnergyCost    float64
	ServiceFee    float64
	DiscountBps   int
	Cost          float64
	Net           decimal.Decimal
	OwnerValue    decimal.Decimal
	ReinvestValue decimal.Decimal
	CharityValue  decimal.Decimal
	FeeValue      decimal.Decimal
	LeafHash      string
	LeafIndex     *int
	Proof         []string
	CreatedAt     time.Time
}

// Leaf returns the commitment leaf content.
func (d Distribution) Leaf() commitment.Leaf {
	return commitment.Leaf{
		EntityID:   d.MinerID,
		OwnerID:    d.OwnerID,
		Period:     d.Period.String(),
		OwnerValue: d.OwnerValue.InexactFloat64(),
		NetValue:   d.Net.InexactFloat64(),
	}
}

// HasProof reports whether proof metadata has been attached.
func (d Distribution) HasProof() bool {
	return d.LeafIndex != nil
}

// Postings returns the ledger legs of the distribution. Zero legs are omitted.
func (d Distribution) Postings(currency string) []ledger.Posting {
	legs := []struct {
		account string
		amount  decimal.Decimal
	}{
		{ledger.OwnerAccountID(d.OwnerID, currency), d.OwnerValue},
		{ledger.SystemAccountID(ledger.KindReinvestmentPool, currency), d.ReinvestValue},
		{ledger.SystemAccountID(ledger.KindCharityPool, currency), d.CharityValue},
		{ledger.SystemAccountID(ledger.KindTreasury, currency), d.FeeValue},
	}
	postings := make([]ledger.Posting, 0, len(legs))
	for _, leg := range legs {
		if !leg.amount.IsPositive() {
			continue
		}
		postings = append(postings, ledger.Posting{
			AccountID: leg.account,
			Direction: ledger.Credit,
			Amount:    leg.amount,
			RefType:   RefTypeDistribution,
			RefID:     d.ID,
		})
	}
	return postings
}

// SystemAccounts returns the purpose accounts a run posts into.
func SystemAccounts(currency string) []ledger.Account {
	return []ledger.Account{
		ledger.NewSystemAccount(ledger.KindTreasury, currency),
		ledger.NewSystemAccount(ledger.KindCharityPool, currency),
		ledger.NewSystemAccount(ledger.KindReinvestmentPool, currency),
	}
}

// LeafProof is the proof metadata attached to a distribution at commit.
type LeafProof struct {
	DistributionID string
	MinerID        string
	Index          int
	Proof          []string
}

// Commit is the completion write of a period.
type Commit struct {
	Period            PeriodKey
	ClaimToken        string
	GrossPool         float64
	ReferencePrice    float64
	PriceSource       PriceSource
	TotalCapacity     float64
	NetworkCapacity   float64
	EntitiesProcessed int
	TotalDistributed  decimal.Decimal
	Root              string
	Proofs            []LeafProof
	CompletedAt       time.Time
}
