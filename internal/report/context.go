package report

import (
	"strings"

	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/classify"
	"github.com/ksred/klear-bill/internal/positions"
	"github.com/ksred/klear-bill/internal/types"
)

const MarketTypeFO = "FO"

// Exchange labels printed in the bill header.
const (
	ExchangeNSE  = "NSE_FNO"
	ExchangeBSE  = "BSE_FO"
	ExchangeBoth = "NSE_FNO/BSE_FO"
)

// expenseOrder is the order the broker bill lists its expenses in. Anything
// else follows in bill-line order.
var expenseOrder = []string{
	charges.BillSGST,
	charges.BillCGST,
	charges.BillSebi,
	charges.BillClearing,
	charges.BillStampDuty,
	charges.BillTOCNSE,
	charges.BillTOCBSE,
	charges.BillSTT,
}

var expenseLabels = map[string]string{
	charges.BillSGST:      "SGST",
	charges.BillCGST:      "CGST",
	charges.BillSebi:      "SEBI FEES",
	charges.BillClearing:  "CLEARING CHARGES",
	charges.BillStampDuty: "STAMPDUTY",
	charges.BillTOCNSE:    "TOC NSE Exchange",
	charges.BillTOCBSE:    "TOC BSE Exchange",
	charges.BillSTT:       "STT",
}

// ExpenseRow is one line of the expenses table.
type ExpenseRow struct {
	Sr       int     `json:"sr"`
	Code     string  `json:"code"`
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
	Decimals int     `json:"decimals"`
}

// Context is everything a bill page prints.
type Context struct {
	Code             string          `json:"code"`
	Exchange         string          `json:"exchange"`
	MarketType       string          `json:"market_type"`
	TradeDate        string          `json:"trade_date"`
	TradeDateDisplay string          `json:"trade_date_display"`
	Positions        positions.Table `json:"positions"`
	TotalNetQty      int64           `json:"total_net_qty"`
	Expenses         []ExpenseRow    `json:"expense_rows"`
	TotalExpenses    float64         `json:"total_expenses"`
	TotalBillAmount  float64         `json:"total_bill_amount"`
}

// BuildContext assembles the printable bill for one account.
func BuildContext(account, tradeDate string, daywise []types.TradeRow, table positions.Table, result *charges.Result) Context {
	var netQty int64
	for _, row := range table.Rows {
		netQty += row.NetQty
	}

	return Context{
		Code:             account,
		Exchange:         ExchangeLabel(daywise),
		MarketType:       MarketTypeFO,
		TradeDate:        tradeDate,
		TradeDateDisplay: FormatTradeDate(tradeDate),
		Positions:        table,
		TotalNetQty:      netQty,
		Expenses:         ExpenseRows(result.BillLines),
		TotalExpenses:    result.TotalExpenses,
		TotalBillAmount:  result.TotalBillAmount,
	}
}

// ExchangeLabel names the exchanges the account traded on. Rows with an
// unknown segment count as NFO.
func ExchangeLabel(rows []types.TradeRow) string {
	var nfo, bfo bool
	for _, row := range rows {
		seg, ok := classify.NormalizeSegment(row.ExchangeSegment)
		if ok && seg == types.SegmentBFO {
			bfo = true
		} else {
			nfo = true
		}
	}

	switch {
	case bfo && !nfo:
		return ExchangeBSE
	case nfo && bfo:
		return ExchangeBoth
	default:
		return ExchangeNSE
	}
}

// ExpenseRows orders bill lines for printing. STT is shown in whole rupees.
func ExpenseRows(lines []charges.BillLine) []ExpenseRow {
	byCode := make(map[string]charges.BillLine, len(lines))
	for _, line := range lines {
		byCode[line.Code] = line
	}

	ordered := make([]charges.BillLine, 0, len(lines))
	known := make(map[string]bool, len(expenseOrder))
	for _, code := range expenseOrder {
		known[code] = true
		if line, ok := byCode[code]; ok {
			ordered = append(ordered, line)
		}
	}
	for _, line := range lines {
		if !known[line.Code] {
			ordered = append(ordered, line)
		}
	}

	rows := make([]ExpenseRow, 0, len(ordered))
	for i, line := range ordered {
		label, ok := expenseLabels[line.Code]
		if !ok {
			label = line.Label
		}
		decimals := 2
		if line.Code == charges.BillSTT {
			decimals = 0
		}
		rows = append(rows, ExpenseRow{
			Sr:       i + 1,
			Code:     line.Code,
			Label:    label,
			Amount:   line.Amount,
			Decimals: decimals,
		})
	}
	return rows
}

// FormatTradeDate prints ISO dates day first. Anything else is returned
// as given.
func FormatTradeDate(value string) string {
	text := strings.TrimSpace(value)
	parts := strings.Split(text, "-")
	if len(parts) == 3 && allDigits(parts) && len(parts[0]) == 4 && len(parts[1]) == 2 && len(parts[2]) == 2 {
		return parts[2] + "-" + parts[1] + "-" + parts[0]
	}
	return text
}

func allDigits(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// scaleWidths spreads total across columns in proportion to weights.
func scaleWidths(weights []float64, total float64) []float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		if sum <= 0 {
			out[i] = total / float64(len(weights))
			continue
		}
		out[i] = total * w / sum
	}
	return out
}
