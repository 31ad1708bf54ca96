package bill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/positions"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/types"
)

func testCard() *ratecard.RateCard {
	return ratecard.New("test", []ratecard.Rule{
		{Key: ratecard.KeyNSETurnover, Label: "NSE Turnover", GST: true, Rates: ratecard.Rates{Futures: 0.00173, Options: 0.03503}},
		{Key: ratecard.KeyNSEClearing, Label: "NSE Clearing", GST: true, Rates: ratecard.Rates{Futures: 0.0005, Options: 0.0005}},
		{Key: ratecard.KeyNSESebi, Label: "NSE SEBIFEES", GST: true, Rates: ratecard.Rates{Futures: 0.0001, Options: 0.0001}},
		{Key: ratecard.KeyNSESTT, Label: "NSE STT", BaseSide: ratecard.SideSell, Rates: ratecard.Rates{Futures: 0.02, Options: 0.05, Assignment: 0.125}},
		{Key: ratecard.KeyNSEStampDuty, Label: "NSE STAMPDUTY", BaseSide: ratecard.SideBuy, Rates: ratecard.Rates{Futures: 0.002, Options: 0.003}},
	})
}

func testRequest() Request {
	return Request{
		Account:   "PR05",
		TradeDate: "2026-02-12",
		Daywise: []types.TradeRow{{
			TradingSymbol:   "NIFTY 12FEB2026 CE 22000",
			ExchangeSegment: "NFO",
			BuyQty:          100,
			SellQty:         100,
			BuyAvgPrice:     100,
			SellAvgPrice:    120,
			BuyValue:        10000,
			SellValue:       12000,
		}},
		Netwise: []types.TradeRow{
			{
				TradingSymbol:   "NIFTY 12FEB2026 CE 22000",
				ExchangeSegment: "NFO",
				OptionType:      "CE",
				Expiry:          "12Feb2026",
				NetQty:          2,
				StrikePrice:     types.Ptr(22000),
				LotSize:         types.Ptr(1),
			},
			{
				TradingSymbol:   "NIFTY 26FEB2026 FUT",
				ExchangeSegment: "NFO",
				Expiry:          "26Feb2026",
				NetQty:          75,
				LastTradePrice:  types.Ptr(22150),
			},
		},
		Closes: settlement.ManualCloses{"NIFTY": 22120},
	}
}

func TestGenerate(t *testing.T) {
	b, err := Generate(testRequest(), testCard())
	require.NoError(t, err)

	assert.Equal(t, "PR05", b.Account)
	assert.InDelta(t, 2000, b.Charges.NetAmount, 1e-9)
	assert.InDelta(t, b.Charges.NetAmount+b.Charges.TotalExpenses, b.Charges.TotalBillAmount, 0.01)

	require.Len(t, b.Settlement.Settled, 1)
	assert.InDelta(t, 240, b.Settlement.Total, 1e-9)
	assert.InDelta(t, 240, b.Charges.ExpirySettlementTotal, 1e-9)

	assert.InDelta(t, 4, b.LotFee, 1e-9)
	require.Len(t, b.LotFees, 1)
	assert.Equal(t, settlement.LotFeeOK, b.LotFees[0].Status)

	assert.Equal(t, positions.StatusOK, b.Closing.Status)
	require.Len(t, b.Closing.Rows, 1)
	assert.Equal(t, "NIFTY 26FEB2026 FUT", b.Closing.Rows[0].Contract)

	require.Len(t, b.Positions.Rows, 1)
	assert.Equal(t, "12-02-2026", b.Context.TradeDateDisplay)

	summary := b.Summary()
	assert.Equal(t, "PR05", summary.Account)
	assert.InDelta(t, 240, summary.SettlementTotal, 1e-9)
	assert.InDelta(t, 75*22150, summary.ClosingValue, 1e-6)
	assert.Equal(t, 0, summary.PendingCount)

	assert.Equal(t, "Bill_PR05_2026-02-12.pdf", b.Filename())
	assert.Equal(t, "PR05", b.Document().Context.Code)
}

func TestWithEdits(t *testing.T) {
	b, err := Generate(testRequest(), testCard())
	require.NoError(t, err)

	same, err := b.WithEdits(nil, nil)
	require.NoError(t, err)
	assert.Same(t, b, same)

	edited, err := b.WithEdits(nil, []charges.Addition{{Name: "Courier", Amount: 50}})
	require.NoError(t, err)
	assert.InDelta(t, b.Charges.TotalExpenses-50, edited.Charges.TotalExpenses, 1e-9)
	assert.InDelta(t, edited.Charges.TotalBillAmount, edited.Context.TotalBillAmount, 1e-9)
	assert.Len(t, edited.Context.Expenses, len(b.Context.Expenses)+1)
	assert.Equal(t, "Courier", edited.Context.Expenses[len(edited.Context.Expenses)-1].Label)

	_, err = b.WithEdits([]charges.Override{{Code: "NOPE", Amount: 1}}, nil)
	assert.True(t, types.IsInputError(err))
}

func TestGeneratePendingWithoutClose(t *testing.T) {
	req := testRequest()
	req.Closes = settlement.ManualCloses{}

	b, err := Generate(req, testCard())
	require.NoError(t, err)
	assert.Len(t, b.Settlement.Pending, 1)
	assert.Zero(t, b.Settlement.Total)
	assert.Equal(t, 1, b.Summary().PendingCount)
}

func TestGenerateErrors(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Request)
		card    *ratecard.RateCard
		isInput bool
	}{
		{"missing account", func(r *Request) { r.Account = " " }, testCard(), true},
		{"missing trade date", func(r *Request) { r.TradeDate = "" }, testCard(), true},
		{"bad trade date", func(r *Request) { r.TradeDate = "someday" }, testCard(), true},
		{"no rate card", func(r *Request) {}, nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest()
			tc.mutate(&req)
			_, err := Generate(req, tc.card)
			require.Error(t, err)
			assert.Equal(t, tc.isInput, types.IsInputError(err))
			assert.Equal(t, !tc.isInput, types.IsConfigError(err))
		})
	}
}

func TestParseTradeDate(t *testing.T) {
	d, err := ParseTradeDate("12-02-2026")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-12", d.Format("2006-01-02"))

	d, err = ParseTradeDate("2026-02-12")
	require.NoError(t, err)
	assert.Equal(t, 12, d.Day())
}

func TestSanitizeFilenamePart(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"PR05", "PR05"},
		{" PR 05 ", "PR_05"},
		{"a/b\\c", "a_b_c"},
		{"2026-02-12", "2026-02-12"},
		{"v1.2_x", "v1.2_x"},
		{"", "UNKNOWN"},
		{"   ", "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeFilenamePart(tc.in))
		})
	}
	assert.Equal(t, "Bill_A_B_12_02.pdf", Filename("A B", "12/02"))
}
