// Package charges computes exchange and statutory charges for a day's F&O
// activity and rounds them the way the broker bill does.
package charges

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

const (
	RoundingPolicy = "Option A"
	STTRounding    = "nearest_rupee_round"
)

// Input is everything a charge computation reads.
type Input struct {
	Account string
	Daywise []types.TradeRow
	Netwise []types.TradeRow

	// ExpirySettlementTotal is carried on the result for display. It does
	// not feed turnover or any charge.
	ExpirySettlementTotal float64
}

// Compute builds the charge set for one account. The only error it returns
// is a configuration error from the rate card.
func Compute(in Input, card *ratecard.RateCard) (*Result, *Debug, error) {
	logger := log.With().
		Str("account", in.Account).
		Str("service", "charges").
		Logger()

	if card == nil {
		return nil, nil, types.NewConfigError("Rate card is not loaded.")
	}

	turnover := AggregateTurnover(in.Daywise)
	if turnover.Defaults.Count > 0 {
		logger.Warn().
			Int("rows", turnover.Defaults.Count).
			Msg("daywise rows with blank or unknown segment defaulted to NFO")
	}

	nfo := SegmentCharges(types.SegmentNFO, turnover.NFO, card)
	bfo := SegmentCharges(types.SegmentBFO, turnover.BFO, card)
	ipft := IPFTAmount(turnover.Combined(), card)

	logger.Debug().
		Float64("nfo_turnover", turnover.NFO.Total()).
		Float64("bfo_turnover", turnover.BFO.Total()).
		Float64("ipft", ipft).
		Msg("computed segment charges")

	for _, seg := range types.Segments {
		if err := ValidateTOC(seg, turnover.Segment(seg), card); err != nil {
			logger.Error().Err(err).Msg("rate card validation failed")
			return nil, nil, fmt.Errorf("validate %s turnover rule: %w", seg, err)
		}
	}

	assignment := ResolveAssignment(in.Netwise, card)
	if n := len(assignment.Debug.Charged); n > 0 {
		logger.Info().
			Int("positions", n).
			Float64("nfo_amount", assignment.NFOAmount).
			Float64("bfo_amount", assignment.BFOAmount).
			Msg("charged exercise/assignment STT")
	}

	lines, rounding := chargeLines(nfo, bfo, ipft, assignment)

	agg := Aggregate(nfo, bfo, ipft, assignment)
	billLines := agg.BillLines()
	totalExpenses := sumAmounts(billLines)
	netAmount := Round2(NetAmount(in.Daywise))

	result := &Result{
		Lines:                 lines,
		GSTLines:              agg.GSTLines(),
		BillLines:             billLines,
		GSTBase:               agg.GSTBase,
		GSTTotal:              agg.GSTTotal,
		TotalExpenses:         totalExpenses,
		NetAmount:             netAmount,
		TotalBillAmount:       Round2(netAmount + totalExpenses),
		ExpirySettlementTotal: in.ExpirySettlementTotal,
	}

	debug := &Debug{
		RoundingPolicy:  RoundingPolicy,
		STTRounding:     STTRounding,
		TurnoverBases:   turnover.Summary(),
		BillAggregation: agg.Debug(),
		LineRounding:    rounding,
		SegmentDefaults: turnover.Defaults,
		InstrumentDebug: turnover.Instruments,
		Assignment:      assignment.Debug,
	}

	logger.Info().
		Float64("gst_base", result.GSTBase).
		Float64("total_expenses", result.TotalExpenses).
		Float64("net_amount", result.NetAmount).
		Float64("total_bill_amount", result.TotalBillAmount).
		Msg("charges computed")

	return result, debug, nil
}

// chargeLines rounds each raw per-rule amount for display. STT lines are
// shown in whole rupees. These rounded values never feed the bill totals.
func chargeLines(nfo, bfo SegmentAmounts, ipft float64, assignment Assignment) ([]ChargeLine, []LineRounding) {
	lines := make([]ChargeLine, 0, 13)
	rounding := make([]LineRounding, 0, 13)

	add := func(code, label string, raw float64, gst bool) {
		var places int32 = 2
		if sttCodes[code] {
			places = 0
		}
		normalized := math.Abs(raw)
		rounded := RoundTo(normalized, places)
		line := NewChargeLine(code, label, rounded, gst)
		lines = append(lines, line)
		rounding = append(rounding, LineRounding{
			Code:         code,
			Label:        label,
			PreRound:     round6(normalized),
			PostRound:    rounded,
			Decimals:     places,
			StoredAmount: line.Amount,
		})
	}

	add(CodeNFOTurnover, "NFO Turnover Charges", nfo.Turnover, true)
	add(CodeBFOTurnover, "BFO Turnover Charges", bfo.Turnover, true)
	add(CodeNFOClearing, "NFO Clearing Charges", nfo.Clearing, true)
	add(CodeBFOClearing, "BFO Clearing Charges", bfo.Clearing, true)
	add(CodeNFOSebi, "NFO SEBI Fees", nfo.Sebi, true)
	add(CodeBFOSebi, "BFO SEBI Fees", bfo.Sebi, true)
	add(CodeIPFT, "IPFT Charges", ipft, true)
	add(CodeNFOSTTSell, "NFO STT (Sell)", nfo.STT, false)
	add(CodeBFOSTTSell, "BFO STT (Sell)", bfo.STT, false)
	add(CodeNFOStampDuty, "NFO Stamp Duty", nfo.Stamp, false)
	add(CodeBFOStampDuty, "BFO Stamp Duty", bfo.Stamp, false)

	if assignment.NFOAmount > 0 {
		add(CodeNFOSTTAssignment, "NFO Assignment/Exercise STT", assignment.NFOAmount, false)
	}
	if assignment.BFOAmount > 0 {
		add(CodeBFOSTTAssignment, "BFO Assignment/Exercise STT", assignment.BFOAmount, false)
	}

	return lines, rounding
}
