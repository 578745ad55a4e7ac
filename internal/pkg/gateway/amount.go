package gateway

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount exactly as it is signed and sent: fixed two
// decimals, dot separator, no grouping.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseAmount parses a gateway amount string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// AmountsEqual compares two amounts at cent precision.
func AmountsEqual(expected, actual decimal.Decimal) bool {
	return expected.Round(2).Equal(actual.Round(2))
}
