package settlement

import (
	"math"
	"strconv"
	"strings"

	"github.com/ksred/klear-bill/internal/types"
)

// IndexField maps an index underlying to the form field carrying its close.
type IndexField struct {
	Symbol string
	Field  string
}

// IndexFields lists the indices a manual close can be entered for.
var IndexFields = []IndexField{
	{Symbol: "NIFTY", Field: "close_nifty"},
	{Symbol: "BANKNIFTY", Field: "close_banknifty"},
	{Symbol: "FINNIFTY", Field: "close_finnifty"},
	{Symbol: "MIDCPNIFTY", Field: "close_midcpnifty"},
	{Symbol: "NIFTYNXT50", Field: "close_niftynxt50"},
	{Symbol: "SENSEX", Field: "close_sensex"},
	{Symbol: "BANKEX", Field: "close_bankex"},
}

// ManualCloses are operator supplied index closes keyed by uppercased
// underlying symbol.
type ManualCloses map[string]float64

// Lookup returns the close for symbol, case-insensitively.
func (m ManualCloses) Lookup(symbol string) (float64, bool) {
	v, ok := m[strings.ToUpper(strings.TrimSpace(symbol))]
	return v, ok
}

// BuildManualCloses reads each index field through value. Blank fields are
// skipped; anything else must be a finite number.
func BuildManualCloses(value func(field string) string) (ManualCloses, error) {
	closes := ManualCloses{}
	for _, f := range IndexFields {
		text := strings.TrimSpace(value(f.Field))
		if text == "" {
			continue
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, types.NewInputError("Invalid close for %s", f.Symbol)
		}
		closes[f.Symbol] = v
	}
	return closes, nil
}
