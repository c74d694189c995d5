package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// ValuePrecision is the fixed number of decimals used in leaf serialization.
const ValuePrecision = 8

const fieldSeparator = "|"

// Leaf is the committed content of one distribution outcome.
type Leaf struct {
	EntityID   string
	OwnerID    string
	Period     string
	OwnerValue float64
	NetValue   float64
}

// Canonical returns the fixed-precision serialization that is hashed.
func (l Leaf) Canonical() (string, error) {
	for _, field := range []string{l.EntityID, l.OwnerID, l.Period} {
		if field == "" || strings.Contains(field, fieldSeparator) {
			return "", ErrInvalidField
		}
	}
	return strings.Join([]string{
		l.EntityID,
		l.OwnerID,
		l.Period,
		FormatValue(l.OwnerValue),
		FormatValue(l.NetValue),
	}, fieldSeparator), nil
}

// FormatValue renders a value with ValuePrecision decimals.
func FormatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(ValuePrecision)
}

// LeafHash returns the hex SHA-256 of the canonical leaf serialization.
func LeafHash(l Leaf) (string, error) {
	canonical, err := l.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}
