package charges

import (
	"github.com/ksred/klear-bill/internal/classify"
)

// Per-rule charge line codes.
const (
	CodeNFOTurnover      = "NFO_TURNOVER"
	CodeBFOTurnover      = "BFO_TURNOVER"
	CodeNFOClearing      = "NFO_CLEARING"
	CodeBFOClearing      = "BFO_CLEARING"
	CodeNFOSebi          = "NFO_SEBI"
	CodeBFOSebi          = "BFO_SEBI"
	CodeIPFT             = "IPFT"
	CodeNFOSTTSell       = "NFO_STT_SELL"
	CodeBFOSTTSell       = "BFO_STT_SELL"
	CodeNFOStampDuty     = "NFO_STAMP_DUTY"
	CodeBFOStampDuty     = "BFO_STAMP_DUTY"
	CodeNFOSTTAssignment = "NFO_STT_ASSIGNMENT"
	CodeBFOSTTAssignment = "BFO_STT_ASSIGNMENT"
	CustomCodePrefix     = "CUSTOM_"
)

// Bill bucket codes.
const (
	BillTOCNSE    = "TOC_NSE"
	BillTOCBSE    = "TOC_BSE"
	BillClearing  = "CLEARING"
	BillSebi      = "SEBI"
	BillIPFT      = "IPFT"
	BillSTT       = "STT"
	BillStampDuty = "STAMP_DUTY"
	BillCGST      = "CGST_9"
	BillSGST      = "SGST_9"
)

const (
	LabelCGST = "CGST @ 9%"
	LabelSGST = "SGST @ 9%"

	// GSTRate is the rate applied separately for CGST and SGST.
	GSTRate = 0.09
)

var sttCodes = map[string]bool{
	CodeNFOSTTSell:       true,
	CodeBFOSTTSell:       true,
	CodeNFOSTTAssignment: true,
	CodeBFOSTTAssignment: true,
}

// ChargeLine is one rate-card rule applied to one segment, rounded for
// display.
type ChargeLine struct {
	Code          string  `json:"code"`
	Label         string  `json:"label"`
	Amount        float64 `json:"amount"`
	GSTApplicable bool    `json:"gst_applicable"`
}

// NewChargeLine stores amount as a debit.
func NewChargeLine(code, label string, amount float64, gstApplicable bool) ChargeLine {
	return ChargeLine{
		Code:          code,
		Label:         label,
		Amount:        debit(amount),
		GSTApplicable: gstApplicable,
	}
}

// BillLine is one printed bucket on the bill.
type BillLine struct {
	Code          string  `json:"code"`
	Label         string  `json:"label"`
	Amount        float64 `json:"amount"`
	GSTApplicable bool    `json:"gst_applicable,omitempty"`
}

// NewBillLine stores amount as a debit.
func NewBillLine(code, label string, amount float64) BillLine {
	return BillLine{
		Code:   code,
		Label:  label,
		Amount: debit(amount),
	}
}

// Result is the computed charge set for one account and day. A Result is
// never modified after it is returned; edits produce a new one.
type Result struct {
	Lines                 []ChargeLine `json:"lines"`
	GSTLines              []BillLine   `json:"gst_lines"`
	BillLines             []BillLine   `json:"bill_lines"`
	GSTBase               float64      `json:"gst_base"`
	GSTTotal              float64      `json:"gst_total"`
	TotalExpenses         float64      `json:"total_expenses"`
	NetAmount             float64      `json:"net_amount"`
	TotalBillAmount       float64      `json:"total_bill_amount"`
	ExpirySettlementTotal float64      `json:"expiry_settlement_total"`
}

// BillLine returns the bill line with the given code.
func (r *Result) BillLine(code string) (BillLine, bool) {
	for _, line := range r.BillLines {
		if line.Code == code {
			return line, true
		}
	}
	return BillLine{}, false
}

// LineRounding shows how one charge line was rounded.
type LineRounding struct {
	Code         string  `json:"code"`
	Label        string  `json:"label"`
	PreRound     float64 `json:"pre_round"`
	PostRound    float64 `json:"post_round"`
	Decimals     int32   `json:"decimals"`
	StoredAmount float64 `json:"stored_amount"`
}

// BillAggregation shows the raw sums behind each bill bucket.
type BillAggregation struct {
	Raw     RawTotals     `json:"raw"`
	Rounded RoundedTotals `json:"rounded"`
	GSTBase float64       `json:"gst_base"`
}

type RawTotals struct {
	Clearing float64 `json:"clearing"`
	Sebi     float64 `json:"sebi"`
	IPFT     float64 `json:"ipft"`
	STT      float64 `json:"stt"`
	Stamp    float64 `json:"stamp"`
}

type RoundedTotals struct {
	TOCNSE   float64 `json:"toc_nse"`
	TOCBSE   float64 `json:"toc_bse"`
	Clearing float64 `json:"clearing"`
	Sebi     float64 `json:"sebi"`
	IPFT     float64 `json:"ipft"`
	STT      float64 `json:"stt"`
	Stamp    float64 `json:"stamp"`
}

// AssignmentDebug is the audit trail of the exercise/assignment scan.
type AssignmentDebug struct {
	Candidates      []AssignmentCandidate    `json:"candidates"`
	Charged         []AssignmentCharge       `json:"charged"`
	SegmentDefaults classify.SegmentDefaults `json:"segment_defaults"`
}

// Debug carries the intermediate figures behind a Result.
type Debug struct {
	RoundingPolicy  string                   `json:"rounding_policy"`
	STTRounding     string                   `json:"stt_rounding"`
	TurnoverBases   TurnoverBases            `json:"turnover_bases"`
	BillAggregation BillAggregation          `json:"bill_aggregation"`
	LineRounding    []LineRounding           `json:"line_rounding"`
	SegmentDefaults classify.SegmentDefaults `json:"segment_defaults"`
	InstrumentDebug InstrumentCounts         `json:"instrument_debug"`
	Assignment      AssignmentDebug          `json:"assignment"`
}
