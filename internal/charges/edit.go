package charges

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ksred/klear-bill/internal/types"
)

// gstApplicableCodes are the computed buckets GST is levied on when a bill
// is edited.
var gstApplicableCodes = map[string]bool{
	BillTOCNSE:   true,
	BillTOCBSE:   true,
	BillClearing: true,
	BillSebi:     true,
}

var whitespace = regexp.MustCompile(`\s+`)

// Override replaces the magnitude of an existing bill line.
type Override struct {
	Code   string      `json:"code"`
	Amount interface{} `json:"amount"`
}

// Addition appends a custom charge to the bill.
type Addition struct {
	Name          string      `json:"name"`
	Amount        interface{} `json:"amount"`
	GSTApplicable bool        `json:"gst_applicable"`
}

// ParseOverrides decodes a JSON array of overrides. Blank input is an empty
// list.
func ParseOverrides(raw string) ([]Override, error) {
	var out []Override
	if err := parseJSONList(raw, "overrides", "override entries must be objects", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseAdditions decodes a JSON array of additions. Blank input is an empty
// list.
func ParseAdditions(raw string) ([]Addition, error) {
	var out []Addition
	if err := parseJSONList(raw, "additions", "addition entries must be objects", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseJSONList(raw, label, entryMsg string, out interface{}) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		var decoded interface{}
		if json.Unmarshal([]byte(raw), &decoded) != nil {
			return types.NewInputError("%s must be valid JSON", label)
		}
		return types.NewInputError("%s must be a JSON array", label)
	}

	for _, item := range items {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return types.NewInputError("%s", entryMsg)
		}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return types.NewInputError("%s: %v", entryMsg, err)
	}
	return nil
}

// ApplyEdits returns a new Result with overrides and additions applied and
// GST and totals recomputed. prev is not modified. Overridden CGST or SGST
// values are kept as given; net amount is carried over unchanged.
func ApplyEdits(prev *Result, overrides []Override, additions []Addition) (*Result, error) {
	billLines := make([]BillLine, len(prev.BillLines))
	copy(billLines, prev.BillLines)

	index := make(map[string]int, len(billLines))
	for i, line := range billLines {
		index[line.Code] = i
	}

	overridden := make(map[string]bool)
	for _, o := range overrides {
		code := strings.TrimSpace(o.Code)
		i, ok := index[code]
		if code == "" || !ok {
			return nil, types.NewInputError("override code not found in charges")
		}
		amount, err := ParseAmount(o.Amount)
		if err != nil {
			return nil, err
		}
		billLines[i].Amount = debit(amount)
		overridden[code] = true
	}

	existing := make(map[string]bool, len(billLines))
	for _, line := range billLines {
		existing[NameKey(line.Label)] = true
	}

	added := make([]BillLine, 0, len(additions))
	seen := make(map[string]bool)
	for _, a := range additions {
		name := DisplayName(a.Name)
		if name == "" {
			return nil, types.NewInputError("custom charge name is required")
		}
		key := NameKey(name)
		if existing[key] || seen[key] {
			return nil, types.NewInputError("Charge already exists; edit it instead.")
		}
		amount, err := ParseAmount(a.Amount)
		if err != nil {
			return nil, err
		}
		seen[key] = true
		added = append(added, BillLine{
			Code:          fmt.Sprintf("%s%d", CustomCodePrefix, len(added)+1),
			Label:         name,
			Amount:        debit(amount),
			GSTApplicable: a.GSTApplicable,
		})
	}

	gstBase := Round2(editGSTBase(billLines, added))
	cgst := Round2(gstBase * GSTRate)
	sgst := Round2(gstBase * GSTRate)
	if i, ok := index[BillCGST]; ok && overridden[BillCGST] {
		cgst = math.Abs(billLines[i].Amount)
	}
	if i, ok := index[BillSGST]; ok && overridden[BillSGST] {
		sgst = math.Abs(billLines[i].Amount)
	}

	billLines = ensureGSTLine(billLines, index, BillCGST, LabelCGST, cgst, overridden)
	billLines = ensureGSTLine(billLines, index, BillSGST, LabelSGST, sgst, overridden)

	updated := append(billLines, added...)
	totalExpenses := sumAmounts(updated)

	lines := make([]ChargeLine, len(prev.Lines))
	copy(lines, prev.Lines)

	return &Result{
		Lines:                 lines,
		GSTLines:              gstLines(cgst, sgst),
		BillLines:             updated,
		GSTBase:               gstBase,
		GSTTotal:              Round2(cgst + sgst),
		TotalExpenses:         totalExpenses,
		NetAmount:             prev.NetAmount,
		TotalBillAmount:       Round2(prev.NetAmount + totalExpenses),
		ExpirySettlementTotal: prev.ExpirySettlementTotal,
	}, nil
}

func editGSTBase(lines, additions []BillLine) float64 {
	var total float64
	for _, line := range lines {
		if gstApplicableCodes[line.Code] {
			total += math.Abs(line.Amount)
		}
	}
	for _, line := range additions {
		if line.GSTApplicable {
			total += math.Abs(line.Amount)
		}
	}
	return total
}

func ensureGSTLine(lines []BillLine, index map[string]int, code, label string, value float64, overridden map[string]bool) []BillLine {
	if i, ok := index[code]; ok {
		if !overridden[code] {
			lines[i].Amount = debit(value)
		}
		if lines[i].Label == "" {
			lines[i].Label = label
		}
		return lines
	}
	lines = append(lines, NewBillLine(code, label, value))
	index[code] = len(lines) - 1
	return lines
}

// DisplayName trims a custom charge name and collapses inner whitespace.
func DisplayName(name string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(name), " ")
}

// NameKey is the case-insensitive identity of a charge name.
func NameKey(name string) string {
	return strings.ToLower(DisplayName(name))
}

// ParseAmount accepts JSON numbers and numeric strings, including strings
// with thousands separators.
func ParseAmount(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, types.NewInputError("amount is required")
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, types.NewInputError("amount must be numeric")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", "")), 64)
		if err != nil {
			return 0, types.NewInputError("amount must be numeric")
		}
		return f, nil
	default:
		return 0, types.NewInputError("amount must be numeric")
	}
}
