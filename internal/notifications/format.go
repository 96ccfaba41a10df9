package notifications

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatCount renders a whole number with thousands separators.
func formatCount(v float64) string {
	return groupThousands(decimal.NewFromFloat(v).Round(0).String())
}

// formatMoney renders an amount in dollars with cents.
func formatMoney(v float64) string {
	return "$" + groupThousands(decimal.NewFromFloat(v).StringFixed(2))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}
