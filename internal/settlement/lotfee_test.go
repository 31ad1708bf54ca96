package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-bill/internal/types"
)

func TestLotFee(t *testing.T) {
	testCases := []struct {
		name   string
		row    types.TradeRow
		total  float64
		rows   int
		source string
		status string
	}{
		{
			name:   "net lot column",
			row:    types.TradeRow{TradingSymbol: "NIFTY 12FEB2026 CE 22000", OptionType: "CE", NetQty: -500, NetLot: types.Ptr(-100), Expiry: "12Feb2026"},
			total:  200,
			rows:   1,
			source: LotSourceNetLot,
			status: LotFeeOK,
		},
		{
			name:   "out of the money option still charged",
			row:    types.TradeRow{TradingSymbol: "SENSEX 12FEB2026 PE 82000", OptionType: "PE", NetQty: 250, NetLot: types.Ptr(50), Expiry: "12Feb2026"},
			total:  100,
			rows:   1,
			source: LotSourceNetLot,
			status: LotFeeOK,
		},
		{
			name:   "quantity over lot size",
			row:    types.TradeRow{TradingSymbol: "NIFTY 12FEB2026 FUT", NetQty: -150, LotSize: types.Ptr(50), Expiry: "12Feb2026"},
			total:  6,
			rows:   1,
			source: LotSourceLotSize,
			status: LotFeeOK,
		},
		{
			name:   "missing lot info",
			row:    types.TradeRow{TradingSymbol: "NIFTY 12FEB2026 FUT", NetQty: 100, Expiry: "12Feb2026"},
			total:  0,
			rows:   1,
			source: LotSourceMissing,
			status: LotFeeMissingLotInfo,
		},
		{
			name: "not expiring",
			row:  types.TradeRow{TradingSymbol: "BANKEX 19FEB2026 FUT", NetQty: -75, NetLot: types.Ptr(-15), Expiry: "19Feb2026"},
		},
		{
			name: "flat position",
			row:  types.TradeRow{TradingSymbol: "NIFTY 12FEB2026 CE 22000", OptionType: "CE", NetLot: types.Ptr(0), Expiry: "12Feb2026"},
		},
		{
			name: "not a derivative",
			row:  types.TradeRow{TradingSymbol: "RELIANCE", NetQty: 10, NetLot: types.Ptr(1), Expiry: "12Feb2026"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			total, rows := LotFee([]types.TradeRow{tc.row}, billDate)

			assert.Equal(t, tc.total, total)
			require.Len(t, rows, tc.rows)
			if tc.rows == 0 {
				return
			}
			assert.Equal(t, tc.source, rows[0].LotSource)
			assert.Equal(t, tc.status, rows[0].Status)
			assert.Equal(t, FeePerLot, rows[0].FeePerLot)
			assert.Equal(t, tc.total, rows[0].Fee)
		})
	}
}

func TestLotFeeNetLotValues(t *testing.T) {
	_, rows := LotFee([]types.TradeRow{
		{TradingSymbol: "NIFTY 12FEB2026 FUT", NetQty: -150, LotSize: types.Ptr(50), Expiry: "12Feb2026"},
		{TradingSymbol: "NIFTY 12FEB2026 FUT", NetQty: 100, Expiry: "12Feb2026"},
	}, billDate)

	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].NetLot)
	assert.Equal(t, -3.0, *rows[0].NetLot)
	assert.Nil(t, rows[1].NetLot)
}

func TestLotFeeHalfPaiseTotal(t *testing.T) {
	// 0.005 + 1.14 sums to 1.1449999999999998 in float64.
	total, rows := LotFee([]types.TradeRow{
		{TradingSymbol: "NIFTY 12FEB2026 FUT", NetQty: 1, NetLot: types.Ptr(0.0025), Expiry: "12Feb2026"},
		{TradingSymbol: "NIFTY 12FEB2026 CE 22000", OptionType: "CE", NetQty: 57, NetLot: types.Ptr(0.57), Expiry: "12Feb2026"},
	}, billDate)

	require.Len(t, rows, 2)
	assert.Equal(t, 1.15, total)
	assert.Equal(t, 0.01, rows[0].Fee)
	assert.Equal(t, 1.14, rows[1].Fee)
}

func TestIsDerivative(t *testing.T) {
	testCases := []struct {
		symbol, optionType, instrumentType string
		want                               bool
	}{
		{"NIFTY 12FEB2026 CE 22000", "", "", true},
		{"NIFTY", "pe", "", true},
		{"NIFTY26FEBFUT", "", "FUTIDX", true},
		{"FUTSTK RELIANCE", "", "", true},
		{"NIFTY 26FEB2026 FUT", "", "", true},
		{"NIFTYCE", "", "", false},
		{"RELIANCE", "", "EQ", false},
	}

	for _, tc := range testCases {
		t.Run(tc.symbol, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDerivative(tc.symbol, tc.optionType, tc.instrumentType))
		})
	}
}
