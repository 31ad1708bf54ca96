package upload

import (
	"regexp"
	"strings"
)

// Canonical column names the rest of the service reads.
const (
	ColTradingSymbol = "TradingSymbol"
	ColSegment       = "Exchg.Seg"
	ColBuyQty        = "BuyQty"
	ColSellQty       = "SellQty"
	ColNetQty        = "NetQty"
	ColBuyAvgPrice   = "BuyAvgPrice"
	ColSellAvgPrice  = "SellAvgPrice"
	ColBuyValue      = "Actual Buy Value"
	ColSellValue     = "Actual Sell Value"
	ColMarkToMarket  = "Actual Mark To Market"

	ColSettlementType = "SettlementType"
	ColSquareOff      = "Square Off Context"
	ColProductType    = "ProductType"
	ColExpiry         = "Expiry"
	ColOptionType     = "Option Type"
	ColInstrumentType = "InstrumentType"
	ColLastTradePrice = "LastTradePrice"
	ColClosePrice     = "ClosePrice"
	ColStrikePrice    = "Strike Price"
	ColLotSize        = "LotSize"
	ColNetLot         = "NetLot"
	ColMultiplier     = "Multiplier"
	ColAccount        = "Account Id"
	ColUser           = "User Id"
)

// RequiredColumns must be present in both extracts.
var RequiredColumns = []string{
	ColTradingSymbol,
	ColSegment,
	ColBuyQty,
	ColSellQty,
	ColNetQty,
	ColBuyAvgPrice,
	ColSellAvgPrice,
	ColBuyValue,
	ColSellValue,
	ColMarkToMarket,
}

type synonym struct {
	canonical string
	aliases   []string
}

// synonyms are tried in order; the first alias matching an unclaimed header
// is renamed to the canonical name.
var synonyms = []synonym{
	{ColTradingSymbol, []string{"TradingSymbol", "Trading Symbol", "Symbol"}},
	{ColSegment, []string{"Exchg.Seg", "Exchange Segment", "Exch Seg", "Segment", "Exchange"}},
	{ColBuyQty, []string{"BuyQty", "Buy Quantity"}},
	{ColSellQty, []string{"SellQty", "Sell Quantity"}},
	{ColNetQty, []string{"NetQty", "Net Quantity"}},
	{ColBuyAvgPrice, []string{"BuyAvgPrice", "Buy Average Price", "Buy Avg"}},
	{ColSellAvgPrice, []string{"SellAvgPrice", "Sell Average Price", "Sell Avg"}},
	{ColBuyValue, []string{"Actual Buy Value", "Buy Value"}},
	{ColSellValue, []string{"Actual Sell Value", "Sell Value"}},
	{ColMarkToMarket, []string{"Actual Mark To Market", "Mark To Market", "MTM"}},

	{ColSettlementType, []string{"SettlementType"}},
	{ColSquareOff, []string{"Square Off Context", "SquareOff Context"}},
	{ColProductType, []string{"ProductType", "Product"}},
	{ColExpiry, []string{"Expiry", "Expiry Date"}},
	{ColOptionType, []string{"Option Type", "Opt Type"}},
	{ColInstrumentType, []string{"InstrumentType", "Instrument"}},
	{ColLastTradePrice, []string{"LastTradePrice", "LTP", "Last Price"}},
	{ColClosePrice, []string{"ClosePrice", "Close"}},
	{ColStrikePrice, []string{"Strike Price", "Strike"}},
	{ColLotSize, []string{"LotSize", "Lot Size", "Lot_Size"}},
	{ColNetLot, []string{"NetLot", "Net Lot", "Net Lots", "NetLotQty", "Net Lot Qty"}},
	{ColMultiplier, []string{"Multiplier"}},
	{ColAccount, []string{"account id", "account_id", "account", "accountid", "client code", "client_code"}},
	{ColUser, []string{"user id", "user_id", "userid", "user", "usercode", "user code"}},
}

var (
	collapseSpace = regexp.MustCompile(`\s+`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]`)
)

// Canonicalize reduces a header to lowercase letters and digits so that
// "Net Lot", "net_lot" and "NETLOT" compare equal.
func Canonicalize(name string) string {
	text := strings.ToLower(strings.TrimSpace(name))
	text = collapseSpace.ReplaceAllString(text, " ")
	return nonAlnum.ReplaceAllString(text, "")
}

// resolveColumns renames recognised headers to their canonical names in
// place. A header that already carries a canonical name keeps it.
func resolveColumns(columns []string) {
	claimed := make(map[int]bool, len(columns))
	for i, col := range columns {
		for _, s := range synonyms {
			if col == s.canonical {
				claimed[i] = true
			}
		}
	}

	for _, s := range synonyms {
		if indexOf(columns, s.canonical) >= 0 {
			continue
		}

		found := -1
		for _, alias := range s.aliases {
			want := Canonicalize(alias)
			for i, col := range columns {
				if !claimed[i] && Canonicalize(col) == want {
					found = i
					break
				}
			}
			if found >= 0 {
				break
			}
		}
		if found >= 0 {
			columns[found] = s.canonical
			claimed[found] = true
		}
	}
}

func indexOf(columns []string, name string) int {
	for i, col := range columns {
		if col == name {
			return i
		}
	}
	return -1
}
