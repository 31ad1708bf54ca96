package charges

import "math"

// Aggregation is the bill under the aggregate-then-round policy: raw
// per-segment amounts are summed first and each bucket is rounded once, which
// is how the broker's printed bill arrives at its figures.
type Aggregation struct {
	TOCNSE   float64
	TOCBSE   float64
	Clearing float64
	Sebi     float64
	IPFT     float64
	STT      float64
	Stamp    float64
	GSTBase  float64
	CGST     float64
	SGST     float64
	GSTTotal float64

	Raw RawTotals
}

// Aggregate combines raw segment amounts into rounded bill buckets.
func Aggregate(nfo, bfo SegmentAmounts, ipft float64, assignment Assignment) Aggregation {
	raw := RawTotals{
		Clearing: math.Abs(nfo.Clearing) + math.Abs(bfo.Clearing),
		Sebi:     math.Abs(nfo.Sebi) + math.Abs(bfo.Sebi),
		IPFT:     math.Abs(ipft),
		STT: math.Abs(nfo.STT) + math.Abs(bfo.STT) +
			math.Abs(assignment.NFOAmount) + math.Abs(assignment.BFOAmount),
		Stamp: math.Abs(nfo.Stamp) + math.Abs(bfo.Stamp),
	}

	a := Aggregation{
		TOCNSE:   Round2(math.Abs(nfo.Turnover)),
		TOCBSE:   Round2(math.Abs(bfo.Turnover)),
		Clearing: Round2(raw.Clearing),
		Sebi:     Round2(raw.Sebi),
		IPFT:     Round2(raw.IPFT),
		STT:      RoundTo(raw.STT, 0),
		Stamp:    Round2(raw.Stamp),
		Raw:      raw,
	}

	a.GSTBase = Round2(a.TOCNSE + a.TOCBSE + a.Clearing + a.Sebi + a.IPFT)
	a.CGST = Round2(a.GSTBase * GSTRate)
	a.SGST = Round2(a.GSTBase * GSTRate)
	a.GSTTotal = Round2(a.CGST + a.SGST)
	return a
}

// BillLines returns the printed buckets in bill order.
func (a Aggregation) BillLines() []BillLine {
	return []BillLine{
		NewBillLine(BillTOCNSE, "TOC NSE Exchange", a.TOCNSE),
		NewBillLine(BillTOCBSE, "TOC BSE Exchange", a.TOCBSE),
		NewBillLine(BillClearing, "Clearing Charges", a.Clearing),
		NewBillLine(BillSebi, "SEBI Fees", a.Sebi),
		NewBillLine(BillIPFT, "IPFT Charges", a.IPFT),
		NewBillLine(BillSTT, "STT", a.STT),
		NewBillLine(BillStampDuty, "Stamp Duty", a.Stamp),
		NewBillLine(BillCGST, LabelCGST, a.CGST),
		NewBillLine(BillSGST, LabelSGST, a.SGST),
	}
}

// GSTLines returns the two GST lines.
func (a Aggregation) GSTLines() []BillLine {
	return gstLines(a.CGST, a.SGST)
}

// Debug returns the raw and rounded bucket values.
func (a Aggregation) Debug() BillAggregation {
	return BillAggregation{
		Raw: RawTotals{
			Clearing: round6(a.Raw.Clearing),
			Sebi:     round6(a.Raw.Sebi),
			IPFT:     round6(a.Raw.IPFT),
			STT:      round6(a.Raw.STT),
			Stamp:    round6(a.Raw.Stamp),
		},
		Rounded: RoundedTotals{
			TOCNSE:   a.TOCNSE,
			TOCBSE:   a.TOCBSE,
			Clearing: a.Clearing,
			Sebi:     a.Sebi,
			IPFT:     a.IPFT,
			STT:      a.STT,
			Stamp:    a.Stamp,
		},
		GSTBase: a.GSTBase,
	}
}

func gstLines(cgst, sgst float64) []BillLine {
	return []BillLine{
		NewBillLine(BillCGST, LabelCGST, cgst),
		NewBillLine(BillSGST, LabelSGST, sgst),
	}
}

// sumAmounts totals bill line amounts and rounds once.
func sumAmounts(lines []BillLine) float64 {
	var total float64
	for _, line := range lines {
		total += line.Amount
	}
	return Round2(total)
}
