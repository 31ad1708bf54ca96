package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount prints v with thousands separators and a fixed number of
// decimals, e.g. -1,234.50.
func FormatAmount(v float64, decimals int) string {
	fixed := decimal.NewFromFloat(v).StringFixed(int32(decimals))
	return groupThousands(fixed)
}

// FormatQty prints a whole quantity with thousands separators.
func FormatQty(v int64) string {
	return groupThousands(decimal.NewFromInt(v).String())
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i:]
	}
	if whole == "0" && strings.Trim(frac, ".0") == "" {
		sign = ""
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
