package units

import (
	"fmt"
	"math"
	"strings"
)

// Currency constants for MWTP output
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
)

// ValidCurrencies contains all valid currency codes
var ValidCurrencies = []string{USD, EUR, GBP}

// IsValidCurrency checks if the given code is a supported currency
func IsValidCurrency(code string) bool {
	for _, c := range ValidCurrencies {
		if code == c {
			return true
		}
	}
	return false
}

func currencySymbol(code string) string {
	switch code {
	case USD:
		return "$"
	case EUR:
		return "€"
	case GBP:
		return "£"
	default:
		return code + " "
	}
}

// FormatCurrency renders a monetary amount with its currency symbol.
// Negative amounts keep the sign in front of the symbol (e.g. -$12.50).
func FormatCurrency(amount float64, code string) string {
	var sb strings.Builder
	if math.Signbit(amount) {
		sb.WriteString("-")
	}
	sb.WriteString(currencySymbol(code))
	sb.WriteString(fmt.Sprintf("%.2f", math.Abs(amount)))
	return sb.String()
}
