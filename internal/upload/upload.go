// Package upload turns uploaded trade extracts into typed rows.
package upload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ksred/klear-bill/internal/types"
)

// Source names an extract in error messages.
type Source struct {
	Name      string
	FileLabel string
}

var (
	Daywise = Source{Name: "Daywise", FileLabel: "Day wise"}
	Netwise = Source{Name: "Netwise", FileLabel: "Net wise"}
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Table is a decoded extract with canonical column names.
type Table struct {
	Source  Source
	Columns []string
	Rows    [][]string
}

// Load reads, cleans and validates one uploaded extract.
func Load(r io.Reader, src Source) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s upload: %w", src.Name, err)
	}

	t, err := Parse(raw, src)
	if err != nil {
		return nil, err
	}
	t.clean()
	resolveColumns(t.Columns)
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.dropBlankSymbols()
	return t, nil
}

// Decode returns raw as text, falling back to Latin-1 when it is not valid
// UTF-8.
func Decode(raw []byte, src Source) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", types.NewInputError("%s CSV file is empty", src.FileLabel)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", types.NewInputError("%s CSV file could not be decoded", src.FileLabel)
	}
	return string(decoded), nil
}

// Parse decodes raw CSV into a table without renaming any column.
func Parse(raw []byte, src Source) (*Table, error) {
	text, err := Decode(raw, src)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, types.NewInputError("%s CSV could not be parsed", src.FileLabel)
	}
	if len(records) == 0 {
		return nil, types.NewInputError("%s CSV file is empty", src.FileLabel)
	}

	header := records[0]
	t := &Table{Source: src, Columns: header, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if len(rec) > len(header) {
			for _, extra := range rec[len(header):] {
				if strings.TrimSpace(extra) != "" {
					return nil, types.NewInputError("%s CSV could not be parsed", src.FileLabel)
				}
			}
			rec = rec[:len(header)]
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// clean trims headers, drops spreadsheet index columns and rows with no
// values at all.
func (t *Table) clean() {
	keep := make([]int, 0, len(t.Columns))
	for i, col := range t.Columns {
		col = strings.TrimSpace(col)
		t.Columns[i] = col
		if strings.HasPrefix(col, "Unnamed:") {
			continue
		}
		keep = append(keep, i)
	}

	columns := make([]string, len(keep))
	for j, i := range keep {
		columns[j] = t.Columns[i]
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, rec := range t.Rows {
		row := make([]string, len(keep))
		empty := true
		for j, i := range keep {
			row[j] = rec[i]
			if !isBlank(rec[i]) {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	t.Columns = columns
	t.Rows = rows
}

func (t *Table) validate() error {
	var missing []string
	for _, col := range RequiredColumns {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return types.NewInputError("Invalid %s CSV format. Missing columns: [%s]. Detected columns: [%s]",
		t.Source.Name, strings.Join(missing, ", "), strings.Join(t.Columns, ", "))
}

func (t *Table) dropBlankSymbols() {
	idx := indexOf(t.Columns, ColTradingSymbol)
	rows := t.Rows[:0]
	for _, rec := range t.Rows {
		if isBlank(rec[idx]) {
			continue
		}
		rec[idx] = strings.TrimSpace(rec[idx])
		rows = append(rows, rec)
	}
	t.Rows = rows
}

// Has reports whether the table carries a column.
func (t *Table) Has(col string) bool {
	return indexOf(t.Columns, col) >= 0
}

// Value returns the trimmed cell of rec under col, or "" when the column is
// absent or the cell is a missing-value marker.
func (t *Table) Value(rec []string, col string) string {
	i := indexOf(t.Columns, col)
	if i < 0 || i >= len(rec) || isBlank(rec[i]) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Number returns the numeric cell of rec under col.
func (t *Table) Number(rec []string, col string) (float64, bool) {
	return ParseNumber(t.Value(rec, col))
}

// Sum totals a numeric column, treating unparseable cells as zero.
func (t *Table) Sum(col string) float64 {
	var total float64
	for _, rec := range t.Rows {
		v, _ := t.Number(rec, col)
		total += v
	}
	return total
}

// TradeRows converts every row.
func (t *Table) TradeRows() []types.TradeRow {
	out := make([]types.TradeRow, 0, len(t.Rows))
	for i, rec := range t.Rows {
		out = append(out, t.tradeRow(i, rec))
	}
	return out
}

func (t *Table) tradeRow(index int, rec []string) types.TradeRow {
	num := func(col string) float64 {
		v, _ := t.Number(rec, col)
		return v
	}
	opt := func(col string) *float64 {
		if v, ok := t.Number(rec, col); ok {
			return types.Ptr(v)
		}
		return nil
	}

	return types.TradeRow{
		Index:            index,
		TradingSymbol:    t.Value(rec, ColTradingSymbol),
		ExchangeSegment:  t.Value(rec, ColSegment),
		BuyQty:           num(ColBuyQty),
		SellQty:          num(ColSellQty),
		NetQty:           num(ColNetQty),
		BuyAvgPrice:      num(ColBuyAvgPrice),
		SellAvgPrice:     num(ColSellAvgPrice),
		BuyValue:         num(ColBuyValue),
		SellValue:        num(ColSellValue),
		MarkToMarket:     num(ColMarkToMarket),
		SettlementType:   t.Value(rec, ColSettlementType),
		SquareOffContext: t.Value(rec, ColSquareOff),
		ProductType:      t.Value(rec, ColProductType),
		Expiry:           t.Value(rec, ColExpiry),
		OptionType:       t.Value(rec, ColOptionType),
		InstrumentType:   t.Value(rec, ColInstrumentType),
		LastTradePrice:   opt(ColLastTradePrice),
		ClosePrice:       opt(ColClosePrice),
		StrikePrice:      opt(ColStrikePrice),
		LotSize:          opt(ColLotSize),
		NetLot:           opt(ColNetLot),
		Multiplier:       opt(ColMultiplier),
		Account:          t.Value(rec, ColAccount),
		User:             t.Value(rec, ColUser),
	}
}

// ParseNumber parses a numeric cell. Thousands separators are accepted;
// blanks, missing-value markers and non-finite values are not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if isBlank(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}
