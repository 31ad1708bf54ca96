package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/ksred/klear-bill/internal/positions"
)

const (
	pageMargin   = 10.0
	bottomMargin = 14.0
	footerHeight = 8.0
	fontFamily   = "Helvetica"
)

// #efede2, the broker bill's header shade.
var shade = [3]int{0xef, 0xed, 0xe2}

var positionColumns = []column{
	{"Sr", 16, "C"},
	{"Security", 80, "L"},
	{"BF Qty", 24, "R"},
	{"BF Rate", 30, "R"},
	{"BF Amount", 38, "R"},
	{"Buy Qty", 28, "R"},
	{"Buy Rate", 30, "R"},
	{"Buy Amount", 40, "R"},
	{"Sell Qty", 28, "R"},
	{"Sell Rate", 30, "R"},
	{"Sell Amount", 40, "R"},
	{"Brkg", 26, "R"},
	{"Net Qty", 28, "R"},
	{"Net Rate", 30, "R"},
	{"Net Amount", 40, "R"},
}

var expenseColumns = []column{
	{"Sr", 14, "C"},
	{"Expenses", 96, "L"},
	{"Amount", 50, "R"},
}

var closingColumns = []column{
	{"Sr", 14, "C"},
	{"Contract", 120, "L"},
	{"Net Qty", 30, "R"},
	{"LTP", 30, "R"},
	{"Value", 40, "R"},
}

// Account is one account's bill together with its closing positions.
type Account struct {
	Context Context
	Closing positions.Closing
}

// RenderBill renders the bill summary for one account.
func RenderBill(ctx Context) ([]byte, error) {
	d := newDocument("Bill Summary Report")
	d.writeBill(ctx)
	return d.output("bill")
}

// RenderAccount renders the bill followed by the account's closing
// positions page.
func RenderAccount(acc Account) ([]byte, error) {
	d := newDocument("Bill Summary Report")
	d.writeBill(acc.Context)
	d.writeClosing(acc.Context, acc.Closing)
	return d.output("account")
}

// RenderConsolidated renders every account's bill and closing page in one
// document.
func RenderConsolidated(accounts []Account) ([]byte, error) {
	d := newDocument("Consolidated Bills")
	for _, acc := range accounts {
		d.writeBill(acc.Context)
		d.writeClosing(acc.Context, acc.Closing)
	}
	if len(accounts) == 0 {
		d.pdf.AddPage()
		d.title("Consolidated Bills")
		d.note("No accounts were billed.")
	}
	return d.output("consolidated")
}

type column struct {
	header string
	weight float64
	align  string
}

type document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64
}

func newDocument(title string) *document {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.AliasNbPages("")
	pdf.SetTitle(title, false)
	pdf.SetCreator("klear-bill", false)

	pageWidth, _ := pdf.GetPageSize()
	d := &document{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		width: pageWidth - 2*pageMargin,
	}
	pdf.SetFooterFunc(d.footer)
	return d
}

func (d *document) output(name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s pdf: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (d *document) footer() {
	_, pageHeight := d.pdf.GetPageSize()
	y := pageHeight - 4 - footerHeight

	d.pdf.SetFillColor(shade[0], shade[1], shade[2])
	d.pdf.SetDrawColor(0, 0, 0)
	d.pdf.Rect(pageMargin, y, d.width, footerHeight, "FD")
	d.pdf.SetFont(fontFamily, "", 8)
	d.pdf.SetXY(pageMargin, y)
	d.pdf.CellFormat(d.width-2, footerHeight, fmt.Sprintf("Page %d of {nb}", d.pdf.PageNo()), "", 0, "RM", false, 0, "")
}

// fits reports whether h more millimetres fit above the footer.
func (d *document) fits(h float64) bool {
	_, pageHeight := d.pdf.GetPageSize()
	return d.pdf.GetY()+h <= pageHeight-bottomMargin
}

func (d *document) title(text string) {
	d.pdf.SetFont(fontFamily, "B", 13)
	d.pdf.CellFormat(d.width, 8, d.tr(text), "", 1, "C", false, 0, "")
	d.pdf.Ln(1)
}

func (d *document) note(text string) {
	d.pdf.SetFont(fontFamily, "", 9)
	d.pdf.CellFormat(d.width, 6, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *document) meta(ctx Context) {
	fields := [][2]string{
		{"Code", ctx.Code},
		{"Exchange", ctx.Exchange},
		{"Market Type", ctx.MarketType},
		{"Trade Date", ctx.TradeDateDisplay},
	}
	cell := d.width / float64(len(fields))
	for _, f := range fields {
		label := f[0] + " : "
		d.pdf.SetFont(fontFamily, "B", 9)
		lw := d.pdf.GetStringWidth(label) + 1
		d.pdf.CellFormat(lw, 6, label, "", 0, "L", false, 0, "")
		d.pdf.SetFont(fontFamily, "", 9)
		d.pdf.CellFormat(cell-lw, 6, d.tr(f[1]), "", 0, "L", false, 0, "")
	}
	d.pdf.Ln(8)
}

func (d *document) writeBill(ctx Context) {
	d.pdf.AddPage()
	d.title("Bill Summary Report")
	d.meta(ctx)

	positionsTable := d.newTable(positionColumns, pageMargin, d.width, 7)
	positionsTable.header()
	for _, row := range ctx.Positions.Rows {
		positionsTable.row([]string{
			fmt.Sprint(row.Sr),
			row.Security,
			FormatQty(row.BFQty),
			FormatAmount(row.BFRate, 2),
			FormatAmount(row.BFAmount, 2),
			FormatQty(row.BuyQty),
			FormatAmount(row.BuyRate, 2),
			FormatAmount(row.BuyAmount, 2),
			FormatQty(row.SellQty),
			FormatAmount(row.SellRate, 2),
			FormatAmount(row.SellAmount, 2),
			FormatAmount(row.Brkg, 2),
			FormatQty(row.NetQty),
			FormatAmount(row.NetRate, 2),
			FormatAmount(row.NetAmount, 2),
		}, false)
	}
	totals := ctx.Positions.Totals
	positionsTable.row([]string{
		"", "TOTAL", "0", "0.00", "0.00",
		FormatQty(totals.BuyQty), "", FormatAmount(totals.BuyAmount, 2),
		FormatQty(totals.SellQty), "", FormatAmount(totals.SellAmount, 2),
		"0.00",
		FormatQty(ctx.TotalNetQty), "", FormatAmount(totals.NetAmount, 2),
	}, true)
	d.pdf.Ln(8)

	boxWidth := d.width * 0.3
	x := pageMargin + d.width*0.7
	expenses := d.newTable(expenseColumns, x, boxWidth, 8)
	expenses.header()
	for _, e := range ctx.Expenses {
		expenses.row([]string{fmt.Sprint(e.Sr), e.Label, FormatAmount(e.Amount, e.Decimals)}, false)
	}
	expenses.row([]string{"", "Total", FormatAmount(ctx.TotalExpenses, 2)}, true)
	d.pdf.Ln(6)

	if !d.fits(8) {
		d.pdf.AddPage()
	}
	d.pdf.SetX(x)
	d.pdf.SetFont(fontFamily, "B", 9)
	d.pdf.SetFillColor(shade[0], shade[1], shade[2])
	d.pdf.CellFormat(boxWidth*0.65, 8, "Total Bill Amount:", "1", 0, "L", true, 0, "")
	d.pdf.CellFormat(boxWidth*0.35, 8, FormatAmount(ctx.TotalBillAmount, 2), "1", 1, "R", true, 0, "")
}

func (d *document) writeClosing(ctx Context, closing positions.Closing) {
	d.pdf.AddPage()
	d.title("Closing Positions")
	d.meta(ctx)

	switch closing.Status {
	case positions.StatusMissing:
		d.note("Closing position data unavailable.")
		return
	case positions.StatusNoOpenPositions:
		d.note("No open positions.")
		return
	}

	t := d.newTable(closingColumns, pageMargin, d.width*0.6, 8)
	t.header()
	var netQty int64
	for _, row := range closing.Rows {
		netQty += row.NetQty
		t.row([]string{
			fmt.Sprint(row.Sr),
			row.Contract,
			FormatQty(row.NetQty),
			FormatAmount(row.LTP, 2),
			FormatAmount(row.Value, 2),
		}, false)
	}
	t.row([]string{"", "TOTAL", FormatQty(netQty), "", FormatAmount(closing.Total, 2)}, true)
}

type table struct {
	doc      *document
	cols     []column
	widths   []float64
	x        float64
	fontSize float64
	height   float64
}

func (d *document) newTable(cols []column, x, width, fontSize float64) *table {
	weights := make([]float64, len(cols))
	for i, c := range cols {
		weights[i] = c.weight
	}
	return &table{
		doc:      d,
		cols:     cols,
		widths:   scaleWidths(weights, width),
		x:        x,
		fontSize: fontSize,
		height:   fontSize*0.5 + 2,
	}
}

func (t *table) header() {
	cells := make([]string, len(t.cols))
	for i, c := range t.cols {
		cells[i] = c.header
	}
	t.draw(cells, true, "C")
}

// row draws one row, starting a new page with a repeated header when the
// row does not fit.
func (t *table) row(cells []string, emphasis bool) {
	if !t.doc.fits(t.height) {
		t.doc.pdf.AddPage()
		t.header()
	}
	t.draw(cells, emphasis, "")
}

func (t *table) draw(cells []string, emphasis bool, align string) {
	pdf := t.doc.pdf
	style := ""
	if emphasis {
		style = "B"
		pdf.SetFillColor(shade[0], shade[1], shade[2])
	}
	pdf.SetFont(fontFamily, style, t.fontSize)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetX(t.x)
	for i, text := range cells {
		a := align
		if a == "" {
			a = t.cols[i].align
		}
		a += "M"
		pdf.CellFormat(t.widths[i], t.height, t.doc.tr(text), "1", 0, a, emphasis, 0, "")
	}
	pdf.Ln(-1)
}
