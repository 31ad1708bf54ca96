package settlement

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/types"
)

// FeePerLot is charged on every open lot of an expiring derivative.
const FeePerLot = 2.0

// Lot sources
const (
	LotSourceNetLot  = "NETLOT"
	LotSourceLotSize = "QTY/LOTSIZE"
	LotSourceMissing = "MISSING"
)

const (
	LotFeeOK             = "OK"
	LotFeeMissingLotInfo = "MISSING_LOT_INFO"
)

var (
	optionToken = regexp.MustCompile(`\bCE\b|\bPE\b`)
	futureToken = regexp.MustCompile(`\bFUT\b`)
)

// LotFeeRow explains the fee on one expiring position.
type LotFeeRow struct {
	TradingSymbol string   `json:"trading_symbol"`
	Expiry        string   `json:"expiry"`
	NetQty        float64  `json:"net_qty"`
	NetLot        *float64 `json:"net_lot"`
	LotSource     string   `json:"lot_source"`
	FeePerLot     float64  `json:"fee_per_lot"`
	Fee           float64  `json:"fee"`
	Status        string   `json:"status"`
}

// LotFee totals the per-lot fee on derivatives expiring on billDate with an
// open quantity. Rows without lot information contribute nothing and are
// flagged MISSING_LOT_INFO.
func LotFee(rows []types.TradeRow, billDate time.Time) (float64, []LotFeeRow) {
	var total float64
	out := []LotFeeRow{}

	for _, row := range rows {
		if row.NetQty == 0 || !expiresOn(row.Expiry, billDate) {
			continue
		}
		if !IsDerivative(row.TradingSymbol, row.OptionType, row.InstrumentType) {
			continue
		}

		netLot, source := netLots(row)
		fee, status := 0.0, LotFeeMissingLotInfo
		if netLot != nil {
			fee = math.Abs(*netLot) * FeePerLot
			status = LotFeeOK
		}
		total += fee

		out = append(out, LotFeeRow{
			TradingSymbol: strings.TrimSpace(row.TradingSymbol),
			Expiry:        strings.TrimSpace(row.Expiry),
			NetQty:        row.NetQty,
			NetLot:        netLot,
			LotSource:     source,
			FeePerLot:     FeePerLot,
			Fee:           charges.Round2(fee),
			Status:        status,
		})
	}

	return charges.Round2(total), out
}

// IsDerivative reports whether a row is an option or a future, judged from
// the option type, symbol tokens and instrument type.
func IsDerivative(symbol, optionType, instrumentType string) bool {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	ot := strings.ToUpper(strings.TrimSpace(optionType))

	if ot == "CE" || ot == "PE" || optionToken.MatchString(s) {
		return true
	}
	return strings.Contains(s, "FUTIDX") ||
		strings.Contains(s, "FUTSTK") ||
		futureToken.MatchString(s) ||
		strings.Contains(strings.ToUpper(instrumentType), "FUT")
}

func netLots(row types.TradeRow) (*float64, string) {
	if v, ok := types.Float(row.NetLot); ok {
		return types.Ptr(v), LotSourceNetLot
	}
	if size, ok := types.Float(row.LotSize); ok && math.Abs(size) > qtyEpsilon {
		return types.Ptr(row.NetQty / size), LotSourceLotSize
	}
	return nil, LotSourceMissing
}
