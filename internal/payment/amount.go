package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Providers cap line item names; PayPal rejects anything above 127 characters.
const maxItemNameLen = 127

// ParseAmount converts a caller-supplied decimal major-unit amount into a
// decimal. Missing, non-numeric and non-positive values are invalid; no
// upstream call may be made for an invalid amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, errInvalidAmount(nil)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errInvalidAmount(err)
	}
	if !d.IsPositive() {
		return decimal.Zero, errInvalidAmount(nil)
	}
	return d, nil
}

// MajorString renders the amount as a two-decimal major-unit string, the
// format PayPal expects ("1500.00").
func MajorString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MinorUnits converts the amount to an integer count of the currency's
// smallest unit (paise/cents), the format Razorpay expects. The same
// conversion is applied for order creation and reconciliation amount checks.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// TruncateItemName caps an item name at the provider field-length limit.
func TruncateItemName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxItemNameLen {
		return name
	}
	return string(runes[:maxItemNameLen])
}
