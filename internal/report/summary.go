package report

import (
	"fmt"
)

// SummaryRow is one account on the admin summary.
type SummaryRow struct {
	Account         string  `json:"account"`
	NetAmount       float64 `json:"net_amount"`
	TotalExpenses   float64 `json:"total_expenses"`
	TotalBillAmount float64 `json:"total_bill_amount"`
	SettlementTotal float64 `json:"settlement_total"`
	ClosingValue    float64 `json:"closing_value"`
	PendingCount    int     `json:"pending_count"`
	ClosingStatus   string  `json:"closing_status"`
}

// SummaryTotals sums the money columns of the admin summary.
type SummaryTotals struct {
	NetAmount       float64 `json:"net_amount"`
	TotalExpenses   float64 `json:"total_expenses"`
	TotalBillAmount float64 `json:"total_bill_amount"`
	SettlementTotal float64 `json:"settlement_total"`
	ClosingValue    float64 `json:"closing_value"`
}

var summaryColumns = []column{
	{"Sr", 12, "C"},
	{"Account", 40, "L"},
	{"Net Amount", 36, "R"},
	{"Total Expenses", 36, "R"},
	{"Total Bill Amount", 40, "R"},
	{"Expiry Settlement", 36, "R"},
	{"Closing Value", 36, "R"},
	{"Pending", 20, "R"},
	{"Closing Status", 36, "L"},
}

// Summarize totals the money columns.
func Summarize(rows []SummaryRow) SummaryTotals {
	var t SummaryTotals
	for _, r := range rows {
		t.NetAmount += r.NetAmount
		t.TotalExpenses += r.TotalExpenses
		t.TotalBillAmount += r.TotalBillAmount
		t.SettlementTotal += r.SettlementTotal
		t.ClosingValue += r.ClosingValue
	}
	return t
}

// RenderAdminSummary renders the one-line-per-account batch summary.
func RenderAdminSummary(tradeDate string, rows []SummaryRow) ([]byte, error) {
	d := newDocument("Admin Summary")
	d.pdf.AddPage()
	d.title("Admin Summary")
	d.note(fmt.Sprintf("Trade Date : %s    Accounts : %d", FormatTradeDate(tradeDate), len(rows)))
	d.pdf.Ln(2)

	t := d.newTable(summaryColumns, pageMargin, d.width, 8)
	t.header()
	for i, r := range rows {
		t.row([]string{
			fmt.Sprint(i + 1),
			r.Account,
			FormatAmount(r.NetAmount, 2),
			FormatAmount(r.TotalExpenses, 2),
			FormatAmount(r.TotalBillAmount, 2),
			FormatAmount(r.SettlementTotal, 2),
			FormatAmount(r.ClosingValue, 2),
			fmt.Sprint(r.PendingCount),
			r.ClosingStatus,
		}, false)
	}

	totals := Summarize(rows)
	t.row([]string{
		"", "TOTAL",
		FormatAmount(totals.NetAmount, 2),
		FormatAmount(totals.TotalExpenses, 2),
		FormatAmount(totals.TotalBillAmount, 2),
		FormatAmount(totals.SettlementTotal, 2),
		FormatAmount(totals.ClosingValue, 2),
		"", "",
	}, true)

	return d.output("admin summary")
}
