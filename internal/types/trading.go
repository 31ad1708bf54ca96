package types

// Segment is the exchange segment a derivatives row is billed under.
type Segment string

const (
	SegmentNFO Segment = "NFO"
	SegmentBFO Segment = "BFO"
)

// Segments lists the billed segments in bill order.
var Segments = []Segment{SegmentNFO, SegmentBFO}

type Instrument string

const (
	InstrumentOptions Instrument = "options"
	InstrumentFutures Instrument = "futures"
)

// TradeRow is one line of a daywise or netwise extract after column
// resolution. Required numeric fields are already coerced (blank or
// unparseable values become 0); optional numerics are nil when the column is
// missing or the cell does not parse.
type TradeRow struct {
	Index           int     `json:"row_index"`
	TradingSymbol   string  `json:"trading_symbol"`
	ExchangeSegment string  `json:"exchange_segment"`
	BuyQty          float64 `json:"buy_qty"`
	SellQty         float64 `json:"sell_qty"`
	NetQty          float64 `json:"net_qty"`
	BuyAvgPrice     float64 `json:"buy_avg_price"`
	SellAvgPrice    float64 `json:"sell_avg_price"`
	BuyValue        float64 `json:"actual_buy_value"`
	SellValue       float64 `json:"actual_sell_value"`
	MarkToMarket    float64 `json:"actual_mark_to_market"`

	SettlementType   string `json:"settlement_type,omitempty"`
	SquareOffContext string `json:"square_off_context,omitempty"`
	ProductType      string `json:"product_type,omitempty"`
	Expiry           string `json:"expiry,omitempty"`
	OptionType       string `json:"option_type,omitempty"`
	InstrumentType   string `json:"instrument_type,omitempty"`

	LastTradePrice *float64 `json:"last_trade_price,omitempty"`
	ClosePrice     *float64 `json:"close_price,omitempty"`
	StrikePrice    *float64 `json:"strike_price,omitempty"`
	LotSize        *float64 `json:"lot_size,omitempty"`
	NetLot         *float64 `json:"net_lot,omitempty"`
	Multiplier     *float64 `json:"multiplier,omitempty"`

	Account string `json:"account,omitempty"`
	User    string `json:"user,omitempty"`
}

// Float returns the value behind an optional field and whether it was set.
func Float(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Ptr is a small helper for building optional fields.
func Ptr(v float64) *float64 {
	return &v
}
