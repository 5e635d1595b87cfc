package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal currency amount into the provider's integer
// minor units, rounding to two decimal places first. A missing amount is zero.
func ToMinorUnits(amount decimal.NullDecimal) int64 {
	if !amount.Valid {
		return 0
	}
	return amount.Decimal.Round(2).Mul(hundred).IntPart()
}
