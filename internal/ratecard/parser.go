package ratecard

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ksred/klear-bill/internal/types"
)

// DefaultMinRules is the smallest rule count a usable card can have.
const DefaultMinRules = 8

var (
	numberPattern     = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)
	fullNumberPattern = regexp.MustCompile(`^[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?$`)
	nonKeyChars       = regexp.MustCompile(`[^A-Z0-9]+`)
	repeatUnderscore  = regexp.MustCompile(`_+`)
)

type columnMap struct {
	name       int
	gst        int
	side       int
	futures    int
	options    int
	assignment int
}

// ParseFile reads the first sheet of the workbook at path.
func ParseFile(path string, minRules int) ([]Rule, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, types.NewConfigError("Rate card could not be read: %v", err)
	}
	defer f.Close()

	return parseWorkbook(f, minRules)
}

// Parse reads the first sheet of a workbook stream.
func Parse(r io.Reader, minRules int) ([]Rule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, types.NewConfigError("Rate card could not be read: %v", err)
	}
	defer f.Close()

	return parseWorkbook(f, minRules)
}

func parseWorkbook(f *excelize.File, minRules int) ([]Rule, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, types.NewConfigError("Rate card could not be read: workbook has no sheets")
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, types.NewConfigError("Rate card could not be read: %v", err)
	}

	return ParseRows(rows, minRules)
}

// ParseRows turns a header row plus data rows into rules.
func ParseRows(rows [][]string, minRules int) ([]Rule, error) {
	if minRules <= 0 {
		minRules = DefaultMinRules
	}
	if len(rows) == 0 {
		return nil, types.NewConfigError("Rate card missing required columns for charge name and GST.")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := detectColumns(headers)
	if cols.name < 0 || cols.gst < 0 {
		return nil, types.NewConfigError("Rate card missing required columns for charge name and GST.")
	}

	rules := make([]Rule, 0, len(rows)-1)
	seen := make(map[string]int)
	for _, row := range rows[1:] {
		label := strings.TrimSpace(cell(row, cols.name))
		if label == "" {
			continue
		}
		if looksNumeric(label) {
			return nil, types.NewConfigError("Rate card label is numeric-like: %s", label)
		}

		rules = append(rules, Rule{
			Key:      dedupeKey(MakeKey(label), seen),
			Label:    label,
			BaseSide: normalizeSide(cell(row, cols.side)),
			GST:      normalizeGST(cell(row, cols.gst)),
			Rates: Rates{
				Futures:    ParseRate(cell(row, cols.futures)),
				Options:    ParseRate(cell(row, cols.options)),
				Assignment: ParseRate(cell(row, cols.assignment)),
			},
		})
	}

	if len(rules) < minRules {
		return nil, types.NewConfigError("Rate card parse produced too few rules (< %d).", minRules)
	}

	return rules, nil
}

func detectColumns(headers []string) columnMap {
	cols := columnMap{}
	cols.name = firstMatch(headers, func(h string) bool { return strings.Contains(h, "charges") })
	cols.futures = firstMatch(headers, func(h string) bool {
		return h == "fut" || (strings.Contains(h, "fut") && !isColumn(headers, cols.name, h))
	})
	cols.options = firstMatch(headers, func(h string) bool { return strings.Contains(h, "opt") })
	cols.assignment = firstMatch(headers, func(h string) bool { return strings.Contains(h, "asg") })
	if cols.assignment < 0 {
		cols.assignment = firstMatch(headers, func(h string) bool {
			return strings.Contains(h, "ex") && !isColumn(headers, cols.name, h)
		})
	}
	cols.gst = firstMatch(headers, func(h string) bool { return strings.Contains(h, "gst") })
	cols.side = firstMatch(headers, func(h string) bool {
		return strings.Contains(h, "b/s") || h == "b_s" || strings.Contains(h, "side")
	})
	return cols
}

func isColumn(headers []string, idx int, h string) bool {
	return idx >= 0 && headers[idx] == h
}

func firstMatch(headers []string, pred func(string) bool) int {
	for i, h := range headers {
		if h != "" && pred(h) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ParseRate reads a rate cell. Plain numbers are used as-is, otherwise the
// first number found in the text wins and anything else is zero.
func ParseRate(value string) float64 {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v
	}
	match := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// MakeKey derives a rule key from its label: upper case, runs of anything
// non-alphanumeric collapsed to a single underscore.
func MakeKey(label string) string {
	key := nonKeyChars.ReplaceAllString(strings.ToUpper(strings.TrimSpace(label)), "_")
	key = strings.Trim(repeatUnderscore.ReplaceAllString(key, "_"), "_")
	if key == "" {
		return "UNKNOWN"
	}
	return key
}

func dedupeKey(key string, seen map[string]int) string {
	seen[key]++
	if seen[key] == 1 {
		return key
	}
	return fmt.Sprintf("%s_%d", key, seen[key])
}

func normalizeSide(value string) Side {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "B", "BUY":
		return SideBuy
	case "S", "SELL":
		return SideSell
	default:
		return SideBoth
	}
}

func normalizeGST(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "YES", "Y", "TRUE", "T", "1":
		return true
	default:
		return false
	}
}

func looksNumeric(label string) bool {
	text := strings.TrimSpace(label)
	if !fullNumberPattern.MatchString(text) {
		return false
	}
	_, err := strconv.ParseFloat(text, 64)
	return err == nil
}
