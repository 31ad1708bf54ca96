package positions

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ksred/klear-bill/internal/types"
)

var expiryLayouts = []string{
	"2-1-2006",
	"2006-1-2",
	"2/1/2006",
	"2006/1/2",
	"2.1.2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2Jan2006",
	"2Jan06",
}

var (
	contractDate = regexp.MustCompile(`(\d+)([A-Z]{3})(\d+)`)
	numericDate  = regexp.MustCompile(`(\d+)[-/](\d+)[-/](\d+)`)
	months       = map[string]time.Month{
		"JAN": time.January, "FEB": time.February, "MAR": time.March,
		"APR": time.April, "MAY": time.May, "JUN": time.June,
		"JUL": time.July, "AUG": time.August, "SEP": time.September,
		"OCT": time.October, "NOV": time.November, "DEC": time.December,
	}
)

// BuildClosing lists open netwise positions valued at their best available
// price. Positions that have clearly expired before tradeDate are left out;
// when the expiry cannot be pinned down the position is kept.
func BuildClosing(rows []types.TradeRow, tradeDate time.Time) Closing {
	if len(rows) == 0 {
		return Closing{Rows: []ClosingRow{}, Status: StatusMissing}
	}

	out := Closing{Rows: []ClosingRow{}}
	for _, row := range rows {
		netQty := wholeQty(row.NetQty)
		if netQty == 0 {
			continue
		}

		contract := strings.TrimSpace(row.TradingSymbol)
		if contract == "" {
			contract = "N/A"
		}
		if !tradeDate.IsZero() && expiredBefore(row.Expiry, contract, tradeDate) {
			continue
		}

		ltp := bestPrice(row)
		value := float64(netQty) * ltp
		out.Total += value
		out.Rows = append(out.Rows, ClosingRow{
			Sr:       len(out.Rows) + 1,
			Contract: contract,
			NetQty:   netQty,
			LTP:      ltp,
			Value:    value,
		})
	}

	if len(out.Rows) == 0 {
		return Closing{Rows: []ClosingRow{}, Status: StatusNoOpenPositions}
	}
	out.Status = StatusOK
	return out
}

// bestPrice is the first non-zero of the last trade price, close price and
// average prices, falling back to the first one present.
func bestPrice(row types.TradeRow) float64 {
	candidates := []*float64{row.LastTradePrice, row.ClosePrice, types.Ptr(row.SellAvgPrice), types.Ptr(row.BuyAvgPrice)}

	var first *float64
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if first == nil {
			first = c
		}
		if math.Abs(*c) > 1e-9 {
			return *c
		}
	}
	if first != nil {
		return *first
	}
	return 0
}

func expiredBefore(explicit, contract string, tradeDate time.Time) bool {
	if t, ok := ParseDate(explicit); ok {
		return dateBefore(t, tradeDate)
	}
	if t, ok := contractExpiry(contract); ok {
		return dateBefore(t, tradeDate)
	}
	return false
}

// ParseDate reads an explicit expiry cell in any of the layouts the
// extracts use.
func ParseDate(value string) (time.Time, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// contractExpiry looks for a dated token in a contract name such as
// "NIFTY 12FEB2026 CE 22000". A day and month without a year is not enough.
func contractExpiry(contract string) (time.Time, bool) {
	text := strings.ToUpper(strings.Join(strings.Fields(contract), " "))
	if text == "" {
		return time.Time{}, false
	}

	if m := firstMatch(contractDate, text, 1, 2, 2, 4); m != nil {
		month, ok := months[m[2]]
		year, yok := normalizeYear(m[3])
		if ok && yok {
			if t, ok := makeDate(year, int(month), atoi(m[1])); ok {
				return t, true
			}
		}
	}

	if m := firstMatch(numericDate, text, 1, 2, 2, 4); m != nil && len(m[2]) <= 2 {
		if year, ok := normalizeYear(m[3]); ok {
			if t, ok := makeDate(year, atoi(m[2]), atoi(m[1])); ok {
				return t, true
			}
		}
	}

	if m := firstMatch(numericDate, text, 4, 4, 1, 2); m != nil && len(m[2]) <= 2 {
		if t, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// firstMatch returns the first match whose leading and trailing digit runs
// have lengths within the given bounds. Matching whole digit runs stands in
// for digit lookarounds.
func firstMatch(re *regexp.Regexp, text string, headMin, headMax, tailMin, tailMax int) []string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		head, tail := len(m[1]), len(m[len(m)-1])
		if head >= headMin && head <= headMax && tail >= tailMin && tail <= tailMax {
			return m
		}
	}
	return nil
}

func normalizeYear(raw string) (int, bool) {
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	switch len(raw) {
	case 4:
		return y, true
	case 2:
		if y <= 79 {
			return 2000 + y, true
		}
		return 1900 + y, true
	}
	return 0, false
}

func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
