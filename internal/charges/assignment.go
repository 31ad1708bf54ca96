package charges

import (
	"math"
	"regexp"
	"strings"

	"github.com/ksred/klear-bill/internal/classify"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

var assignmentEvent = regexp.MustCompile(`(?i)(EXE|EXERCISE|ASSIGN)`)

// AssignmentCandidate is a netwise row with an open quantity that was
// considered for exercise/assignment STT.
type AssignmentCandidate struct {
	TradingSymbol    string           `json:"trading_symbol"`
	Segment          types.Segment    `json:"segment"`
	SegmentRaw       string           `json:"segment_raw"`
	ProductType      string           `json:"product_type"`
	Instrument       types.Instrument `json:"instrument"`
	NetQty           int64            `json:"net_qty"`
	SettlementType   string           `json:"settlement_type"`
	SquareOffContext string           `json:"square_off_context"`
	Qualifies        bool             `json:"qualifies"`
}

// AssignmentCharge is a candidate that was charged.
type AssignmentCharge struct {
	TradingSymbol string        `json:"trading_symbol"`
	Segment       types.Segment `json:"segment"`
	NetQty        int64         `json:"net_qty"`
	Base          float64       `json:"base"`
	Rate          float64       `json:"rate"`
	Amount        float64       `json:"amount"`
}

// Assignment holds the per-segment exercise/assignment STT and its audit.
type Assignment struct {
	NFOAmount float64
	BFOAmount float64
	Debug     AssignmentDebug
}

// Amount returns the raw assignment STT for seg.
func (a Assignment) Amount(seg types.Segment) float64 {
	if seg == types.SegmentBFO {
		return a.BFOAmount
	}
	return a.NFOAmount
}

// IsAssignmentEvent reports whether either flag marks the position as
// exercised or assigned.
func IsAssignmentEvent(settlementType, squareOffContext string) bool {
	return assignmentEvent.MatchString(settlementType) || assignmentEvent.MatchString(squareOffContext)
}

// ResolveAssignment scans netwise rows for exercised or assigned option
// positions and prices their STT using the segment's assignment rate.
func ResolveAssignment(rows []types.TradeRow, card *ratecard.RateCard) Assignment {
	result := Assignment{
		Debug: AssignmentDebug{
			Candidates:      []AssignmentCandidate{},
			Charged:         []AssignmentCharge{},
			SegmentDefaults: classify.NewSegmentDefaults(),
		},
	}

	for _, row := range rows {
		if row.NetQty == 0 {
			continue
		}

		c := classify.Row(row)
		if c.Defaulted {
			result.Debug.SegmentDefaults.Add(c.DefaultedRow())
		}

		isOption := c.Instrument == types.InstrumentOptions
		settlementType := strings.TrimSpace(row.SettlementType)
		squareOff := strings.TrimSpace(row.SquareOffContext)
		qualifies := IsAssignmentEvent(settlementType, squareOff)

		productType := strings.TrimSpace(row.ProductType)
		if productType == "" {
			productType = "UNKNOWN"
		}

		candidate := AssignmentCandidate{
			TradingSymbol:    strings.TrimSpace(row.TradingSymbol),
			Segment:          c.Segment,
			SegmentRaw:       strings.TrimSpace(row.ExchangeSegment),
			ProductType:      productType,
			Instrument:       c.Instrument,
			NetQty:           int64(math.Round(row.NetQty)),
			SettlementType:   settlementType,
			SquareOffContext: squareOff,
			Qualifies:        qualifies && isOption,
		}
		result.Debug.Candidates = append(result.Debug.Candidates, candidate)

		if !candidate.Qualifies {
			continue
		}

		base := math.Abs(row.BuyValue) + math.Abs(row.SellValue)
		if base == 0 {
			ltp, _ := types.Float(row.LastTradePrice)
			base = math.Abs(row.NetQty) * math.Abs(ltp)
		}

		sttKey := ratecard.KeyNSESTT
		if c.Segment == types.SegmentBFO {
			sttKey = ratecard.KeyBSESTT
		}
		var rate float64
		if rule, ok := card.Rule(sttKey); ok {
			rate = rule.AssignmentRate()
		}
		amount := base * rate

		result.Debug.Charged = append(result.Debug.Charged, AssignmentCharge{
			TradingSymbol: candidate.TradingSymbol,
			Segment:       c.Segment,
			NetQty:        candidate.NetQty,
			Base:          Round2(base),
			Rate:          rate,
			Amount:        Round2(amount),
		})

		if c.Segment == types.SegmentBFO {
			result.BFOAmount += amount
		} else {
			result.NFOAmount += amount
		}
	}

	return result
}
