// Package classify maps raw extract fields onto billing segments and
// instrument types.
package classify

import (
	"regexp"
	"strings"

	"github.com/ksred/klear-bill/internal/types"
)

var optionToken = regexp.MustCompile(`\bCE\b|\bPE\b`)

// NormalizeSegment maps an Exchg.Seg value onto a billed segment. The second
// return is false for blank or unrecognised values; callers default those to
// NFO and record the row.
func NormalizeSegment(raw string) (types.Segment, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "NFO", "NSEFO":
		return types.SegmentNFO, true
	case "BFO", "BSEFO":
		return types.SegmentBFO, true
	default:
		return "", false
	}
}

// DetectInstrument treats any symbol carrying a standalone CE or PE token as
// an option; everything else is billed as a future.
func DetectInstrument(symbol string) types.Instrument {
	if optionToken.MatchString(strings.ToUpper(symbol)) {
		return types.InstrumentOptions
	}
	return types.InstrumentFutures
}

// DefaultedRow records a row whose segment fell back to NFO.
type DefaultedRow struct {
	RowIndex      int           `json:"row_index"`
	TradingSymbol string        `json:"trading_symbol"`
	SegmentUsed   types.Segment `json:"segment_used"`
	SegmentRaw    string        `json:"segment_raw"`
}

// Classified is a row with its resolved segment and instrument.
type Classified struct {
	Row        types.TradeRow
	Segment    types.Segment
	Instrument types.Instrument
	Defaulted  bool
}

// Row classifies a single trade row.
func Row(row types.TradeRow) Classified {
	segment, ok := NormalizeSegment(row.ExchangeSegment)
	if !ok {
		segment = types.SegmentNFO
	}
	return Classified{
		Row:        row,
		Segment:    segment,
		Instrument: DetectInstrument(strings.TrimSpace(row.TradingSymbol)),
		Defaulted:  !ok,
	}
}

// DefaultedRow returns the audit record for a row whose segment was defaulted.
func (c Classified) DefaultedRow() DefaultedRow {
	return DefaultedRow{
		RowIndex:      c.Row.Index,
		TradingSymbol: strings.TrimSpace(c.Row.TradingSymbol),
		SegmentUsed:   c.Segment,
		SegmentRaw:    strings.TrimSpace(c.Row.ExchangeSegment),
	}
}

// SegmentDefaults is the audit of defaulted rows. Only the first MaxAuditRows
// are kept; Count is always the full number.
type SegmentDefaults struct {
	Count int            `json:"count"`
	Rows  []DefaultedRow `json:"rows"`
	Note  string         `json:"note"`
}

// MaxAuditRows bounds how many defaulted rows an audit keeps.
const MaxAuditRows = 10

func NewSegmentDefaults() SegmentDefaults {
	return SegmentDefaults{
		Rows: []DefaultedRow{},
		Note: "Missing/blank Exchg.Seg defaulted to NFO.",
	}
}

// Add records a defaulted row.
func (d *SegmentDefaults) Add(row DefaultedRow) {
	d.Count++
	if len(d.Rows) < MaxAuditRows {
		d.Rows = append(d.Rows, row)
	}
}
