package upload

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-bill/internal/types"
)

const daywiseHeader = "TradingSymbol,Exchg.Seg,BuyQty,SellQty,NetQty,BuyAvgPrice,SellAvgPrice,Actual Buy Value,Actual Sell Value,Actual Mark To Market"

func TestLoadDaywise(t *testing.T) {
	csv := daywiseHeader + ",Unnamed: 10\n" +
		"NIFTY 26FEB2026 FUT,NFO,75,25,50,100,110,\"7,500\",2750,-4750,\n" +
		" ,NFO,1,1,0,1,1,1,1,0,\n" +
		",,,,,,,,,,\n" +
		"SENSEX 20FEB2026 CE 85000,BFO,10,0,10,5.5,0,55,0,-55,x\n"

	table, err := Load(strings.NewReader(csv), Daywise)
	require.NoError(t, err)

	assert.NotContains(t, table.Columns, "Unnamed: 10")
	require.Len(t, table.Rows, 2)

	rows := table.TradeRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "NIFTY 26FEB2026 FUT", rows[0].TradingSymbol)
	assert.Equal(t, "NFO", rows[0].ExchangeSegment)
	assert.Equal(t, 7500.0, rows[0].BuyValue)
	assert.Equal(t, 2750.0, rows[0].SellValue)
	assert.Equal(t, 50.0, rows[0].NetQty)
	assert.Nil(t, rows[0].LastTradePrice)
	assert.Equal(t, 1, rows[1].Index)

	assert.Equal(t, 7555.0, table.Sum(ColBuyValue))
	assert.Equal(t, -4805.0, table.Sum(ColMarkToMarket))
}

func TestLoadResolvesSynonyms(t *testing.T) {
	csv := "Symbol,Trading Symbol,Exchange,Buy Qty,Sell Qty,Net Qty,Buy Avg Price,Sell Avg Price,Actual Buy Value,Actual Sell Value,Actual Mark To Market,Net Lots,Lot_Size,option type,Strike Price,LTP,Client Code\n" +
		"NIFTY,NIFTY 23JAN2026 CE 25650,NSE_FNO,10,10,0,1,1,100,120,20,-2,75,CE,25650,12.5,PR07\n"

	table, err := Load(strings.NewReader(csv), Netwise)
	require.NoError(t, err)

	assert.Contains(t, table.Columns, "Symbol")
	for _, col := range RequiredColumns {
		assert.True(t, table.Has(col), col)
	}

	rows := table.TradeRows()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "NIFTY 23JAN2026 CE 25650", row.TradingSymbol)
	assert.Equal(t, "NSE_FNO", row.ExchangeSegment)
	assert.Equal(t, "CE", row.OptionType)
	assert.Equal(t, "PR07", row.Account)
	assert.Equal(t, types.Ptr(-2), row.NetLot)
	assert.Equal(t, types.Ptr(75), row.LotSize)
	assert.Equal(t, types.Ptr(25650), row.StrikePrice)
	assert.Equal(t, types.Ptr(12.5), row.LastTradePrice)
}

func TestLoadMissingColumns(t *testing.T) {
	_, err := Load(strings.NewReader("Symbol\nNIFTY\n"), Netwise)
	require.Error(t, err)
	assert.True(t, types.IsInputError(err))

	msg := err.Error()
	assert.Contains(t, msg, "Invalid Netwise CSV format")
	assert.Contains(t, msg, "Missing columns")
	assert.Contains(t, msg, "Detected columns: [TradingSymbol]")
	assert.Contains(t, msg, "Exchg.Seg")
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		input   []byte
		message string
	}{
		{"empty", nil, "Day wise CSV file is empty"},
		{"whitespace only", []byte("  \n "), "Day wise CSV file is empty"},
		{"extra fields", []byte("a,b\n1,2,3\n"), "Day wise CSV could not be parsed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tc.input), Daywise)
			require.Error(t, err)
			assert.True(t, types.IsInputError(err))
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestDecodeLatin1Fallback(t *testing.T) {
	raw := []byte("name\nCaf\xe9\n")
	text, err := Decode(raw, Daywise)
	require.NoError(t, err)
	assert.Equal(t, "name\nCafé\n", text)

	text, err = Decode([]byte("\xef\xbb\xbfa,b\n"), Daywise)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", text)
}

func TestCanonicalize(t *testing.T) {
	testCases := []struct {
		input, want string
	}{
		{"Net Lot", "netlot"},
		{" NET_LOT ", "netlot"},
		{"Exchg.Seg", "exchgseg"},
		{"Actual  Mark To\tMarket", "actualmarktomarket"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.input))
		})
	}
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"1,250.50", 1250.5, true},
		{" -3 ", -3, true},
		{"nan", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"inf", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := ParseNumber(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
