package charges

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

func scenarioDaywise() []types.TradeRow {
	return []types.TradeRow{
		dayRow("NIFTY 26FEB2026 FUT", "NFO", 100000, 50000),
		dayRow("SENSEX 20FEB2026 CE 85000", "BFO", 20000, 10000),
	}
}

func billAmount(t *testing.T, r *Result, code string) float64 {
	t.Helper()
	line, ok := r.BillLine(code)
	require.True(t, ok, "missing bill line %s", code)
	return line.Amount
}

func TestComputeEndToEnd(t *testing.T) {
	result, debug, err := Compute(Input{Account: "PR01", Daywise: scenarioDaywise()}, testCard())
	require.NoError(t, err)

	expectedIPFT := RoundTo(150000*0.000001+30000*0.000005, 2)
	assert.Equal(t, -expectedIPFT, billAmount(t, result, BillIPFT))

	var ipftLine *ChargeLine
	for i := range result.Lines {
		if result.Lines[i].Code == CodeIPFT {
			ipftLine = &result.Lines[i]
		}
	}
	require.NotNil(t, ipftLine)
	assert.True(t, ipftLine.GSTApplicable)

	gstBase := Round2(math.Abs(billAmount(t, result, BillTOCNSE)) +
		math.Abs(billAmount(t, result, BillTOCBSE)) +
		math.Abs(billAmount(t, result, BillClearing)) +
		math.Abs(billAmount(t, result, BillSebi)) +
		math.Abs(billAmount(t, result, BillIPFT)))
	assert.Equal(t, gstBase, result.GSTBase)
	assert.Equal(t, -Round2(gstBase*GSTRate), billAmount(t, result, BillCGST))

	assert.Equal(t, -60000.0, result.NetAmount)
	assert.Equal(t, Round2(result.NetAmount+result.TotalExpenses), result.TotalBillAmount)

	var total float64
	for _, line := range result.BillLines {
		assert.LessOrEqual(t, line.Amount, 0.0, line.Code)
		total += line.Amount
	}
	assert.Equal(t, Round2(total), result.TotalExpenses)

	for _, line := range result.Lines {
		assert.NotEqual(t, CodeNFOSTTAssignment, line.Code)
	}

	assert.Equal(t, RoundingPolicy, debug.RoundingPolicy)
	assert.Equal(t, 150000.0, debug.TurnoverBases.NFO.FuturesTurnover)
	assert.Equal(t, 30000.0, debug.TurnoverBases.BFO.OptionsTurnover)
	assert.Len(t, debug.LineRounding, 11)
}

func TestComputeGSTBaseIgnoresSTTAndStamp(t *testing.T) {
	base, _, err := Compute(Input{Daywise: scenarioDaywise()}, testCard())
	require.NoError(t, err)

	rules := testRules()
	for i := range rules {
		switch rules[i].Key {
		case ratecard.KeyNSESTT, ratecard.KeyBSESTT, ratecard.KeyNSEStampDuty, ratecard.KeyBSEStampDuty:
			rules[i].Rates.Futures *= 10
			rules[i].Rates.Options *= 10
		}
	}
	heavier, _, err := Compute(Input{Daywise: scenarioDaywise()}, ratecard.New("test", rules))
	require.NoError(t, err)

	assert.Equal(t, base.GSTBase, heavier.GSTBase)
	assert.Less(t, billAmount(t, heavier, BillSTT), billAmount(t, base, BillSTT))
	assert.Less(t, heavier.TotalExpenses, base.TotalExpenses)
}

func TestComputeAssignmentSTT(t *testing.T) {
	netwise := []types.TradeRow{
		{TradingSymbol: "NIFTY 12FEB2026 CE 22000", ExchangeSegment: "NFO", NetQty: 400, SettlementType: "EXERCISE", LastTradePrice: types.Ptr(100)},
	}

	result, debug, err := Compute(Input{Daywise: scenarioDaywise(), Netwise: netwise}, testCard())
	require.NoError(t, err)

	var found bool
	for _, line := range result.Lines {
		if line.Code == CodeNFOSTTAssignment {
			found = true
			assert.Equal(t, -50.0, line.Amount)
		}
	}
	assert.True(t, found)
	assert.Len(t, debug.Assignment.Charged, 1)

	sellSTT := 50000*0.0002 + 10000*0.0005
	assert.Equal(t, -RoundTo(sellSTT+50, 0), billAmount(t, result, BillSTT))
}

func TestComputeCarriesSettlementTotal(t *testing.T) {
	result, _, err := Compute(Input{Daywise: scenarioDaywise(), ExpirySettlementTotal: 5000}, testCard())
	require.NoError(t, err)

	assert.Equal(t, 5000.0, result.ExpirySettlementTotal)
	assert.Equal(t, Round2(result.NetAmount+result.TotalExpenses), result.TotalBillAmount)
}

func TestComputeConfigErrors(t *testing.T) {
	_, _, err := Compute(Input{Daywise: scenarioDaywise()}, cardWithout(ratecard.KeyBSETurnover))
	require.Error(t, err)

	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "BFO TOC rule missing. Update rate card to match broker PDF.", cfgErr.Message)

	_, _, err = Compute(Input{}, nil)
	assert.True(t, types.IsConfigError(err))
}

func TestComputeEmptyInput(t *testing.T) {
	result, _, err := Compute(Input{}, cardWithout(ratecard.KeyNSETurnover))
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.TotalExpenses)
	assert.Equal(t, 0.0, result.TotalBillAmount)
	assert.Len(t, result.BillLines, 9)
}
