package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitTax returns net = round2(gross * (1 - pct/100)) and tax = gross - net,
// so net + tax always equals gross exactly.
func SplitTax(gross, taxPercent decimal.Decimal) (net, tax decimal.Decimal) {
	gross = gross.Round(2)
	factor := decimal.NewFromInt(1).Sub(taxPercent.Div(hundred))
	net = gross.Mul(factor).Round(2)
	tax = gross.Sub(net)
	return net, tax
}

// ValidTaxPercent reports whether pct is within [0, 100].
func ValidTaxPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// FormatMoney renders an amount for ledger notes, e.g. "$20.00" or "20.00 EUR".
func FormatMoney(amount decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "", "USD":
		if amount.IsNegative() {
			return "-$" + amount.Neg().StringFixed(2)
		}
		return "$" + amount.StringFixed(2)
	default:
		return fmt.Sprintf("%s %s", amount.StringFixed(2), strings.ToUpper(currency))
	}
}
