// Package settlement resolves option positions that expire on the bill date
// against operator supplied index closes, and reports the per-lot expiry fee.
package settlement

import (
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/types"
)

const qtyEpsilon = 1e-9

// Outcome is the result of settling one account's netwise rows.
type Outcome struct {
	// Closing holds the rows that still belong in the closing position view.
	Closing []types.TradeRow
	Settled []Row
	Pending []Row
	Total   float64
}

// Resolve removes positions expiring on billDate from the closing view and
// settles the option positions among them. Rows whose expiry cannot be
// parsed stay in the closing view.
func Resolve(rows []types.TradeRow, billDate time.Time, closes ManualCloses) Outcome {
	logger := log.With().
		Str("service", "settlement").
		Str("bill_date", billDate.Format("2006-01-02")).
		Logger()

	out := Outcome{
		Closing: make([]types.TradeRow, 0, len(rows)),
		Settled: []Row{},
		Pending: []Row{},
	}

	for _, row := range rows {
		if !expiresOn(row.Expiry, billDate) {
			out.Closing = append(out.Closing, row)
			continue
		}

		optionType := strings.ToUpper(strings.TrimSpace(row.OptionType))
		if optionType != "CE" && optionType != "PE" {
			continue
		}
		if math.Abs(row.NetQty) < qtyEpsilon {
			continue
		}

		settled := settleRow(row, optionType, billDate, closes)
		if settled.IsPending() {
			out.Pending = append(out.Pending, settled)
			continue
		}
		out.Settled = append(out.Settled, settled)
		out.Total += settled.SettlementAmount
	}

	if len(out.Pending) > 0 {
		logger.Warn().Int("pending", len(out.Pending)).Msg("expiring options left pending")
	}
	logger.Debug().
		Int("settled", len(out.Settled)).
		Float64("total", out.Total).
		Msg("expiry settlement resolved")

	return out
}

func settleRow(row types.TradeRow, optionType string, billDate time.Time, closes ManualCloses) Row {
	symbol := strings.TrimSpace(row.TradingSymbol)
	underlying := Underlying(symbol)

	result := Row{
		TradingSymbol:    symbol,
		Expiry:           strings.TrimSpace(row.Expiry),
		OptionType:       optionType,
		Strike:           row.StrikePrice,
		NetQty:           row.NetQty,
		UnderlyingSymbol: underlying,
		CloseDate:        billDate.Format("2006-01-02"),
		Source:           SourceManualInput,
	}

	indexClose, ok := closes.Lookup(underlying)
	if !ok {
		result.VerificationStatus = VerificationPending
		result.Status = StatusMissingManualClose
		result.ActionStatus = StatusMissingManualClose
		return result
	}
	result.UnderlyingClose = types.Ptr(indexClose)
	result.VerificationStatus = VerificationManual

	strike, ok := types.Float(row.StrikePrice)
	if !ok {
		result.Status = StatusMissingStrikePrice
		result.ActionStatus = StatusMissingStrikePrice
		return result
	}

	var intrinsic float64
	if optionType == "CE" {
		intrinsic = math.Max(0, indexClose-strike)
	} else {
		intrinsic = math.Max(0, strike-indexClose)
	}
	multiplier := Multiplier(row)

	status := StatusAssign
	switch {
	case intrinsic == 0:
		status = StatusExpireOTM
	case row.NetQty > 0:
		status = StatusExercise
	}

	result.Intrinsic = types.Ptr(intrinsic)
	result.Multiplier = multiplier
	result.SettlementAmount = row.NetQty * intrinsic * multiplier
	result.Status = status
	result.ActionStatus = status
	return result
}

// Multiplier converts net quantity into units. An explicit positive
// multiplier wins; a quantity equal to the net lot count is scaled by the lot
// size; otherwise quantity is already in units.
func Multiplier(row types.TradeRow) float64 {
	if m, ok := types.Float(row.Multiplier); ok && m > 0 {
		return m
	}

	lotSize, hasLotSize := types.Float(row.LotSize)
	netLot, hasNetLot := types.Float(row.NetLot)
	if hasLotSize && lotSize > 0 && hasNetLot && math.Abs(netLot) > qtyEpsilon &&
		math.Abs(math.Abs(row.NetQty)-math.Abs(netLot)) <= qtyEpsilon {
		return lotSize
	}
	return 1
}

// Underlying is the first token of the uppercased trading symbol.
func Underlying(symbol string) string {
	fields := strings.Fields(strings.ToUpper(symbol))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
