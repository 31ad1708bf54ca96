package positions

// Closing position statuses
const (
	StatusOK              = "OK"
	StatusMissing         = "MISSING"
	StatusNoOpenPositions = "NO_OPEN_POSITIONS"
)

// Row is one security on the bill's positions table.
type Row struct {
	Sr         int     `json:"sr"`
	Security   string  `json:"security"`
	Segment    string  `json:"segment"`
	BFQty      int64   `json:"bf_qty"`
	BFRate     float64 `json:"bf_rate"`
	BFAmount   float64 `json:"bf_amount"`
	BuyQty     int64   `json:"buy_qty"`
	BuyRate    float64 `json:"buy_rate"`
	BuyAmount  float64 `json:"buy_amount"`
	SellQty    int64   `json:"sell_qty"`
	SellRate   float64 `json:"sell_rate"`
	SellAmount float64 `json:"sell_amount"`
	Brkg       float64 `json:"brkg"`
	NetQty     int64   `json:"net_qty"`
	NetRate    float64 `json:"net_rate"`
	NetAmount  float64 `json:"net_amount"`
	MTMAmount  float64 `json:"mtm_amount"`
}

type Totals struct {
	BuyQty     int64   `json:"total_buy_qty"`
	BuyAmount  float64 `json:"total_buy_amount"`
	SellQty    int64   `json:"total_sell_qty"`
	SellAmount float64 `json:"total_sell_amount"`
	NetAmount  float64 `json:"total_net_amount"`
	Brkg       float64 `json:"total_brkg"`
	MTMAmount  float64 `json:"total_mtm_amount"`
}

// Table is the positions section of a bill.
type Table struct {
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
}

// ClosingRow is an open position carried past the trade date.
type ClosingRow struct {
	Sr       int     `json:"sr"`
	Contract string  `json:"contract"`
	NetQty   int64   `json:"net_qty"`
	LTP      float64 `json:"ltp"`
	Value    float64 `json:"value"`
}

type Closing struct {
	Rows   []ClosingRow `json:"rows"`
	Total  float64      `json:"total"`
	Status string       `json:"status"`
}
