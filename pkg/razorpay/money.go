package razorpay

import "github.com/shopspring/decimal"

// ToMinorUnits converts a base-currency amount to paise. This is the single
// designed conversion seam between the storefront's base-unit amounts and the
// gateway's minor-unit amounts.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts paise back to a base-currency amount.
func FromMinorUnits(amountMinor int64) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Div(decimal.NewFromInt(100))
}
