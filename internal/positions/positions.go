// Package positions builds the position tables printed on a bill: the day's
// traded securities netted per segment, and the positions left open at close.
package positions

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/types"
)

type nettingKey struct {
	segment string
	symbol  string
}

type netting struct {
	nettingKey
	buyQty, sellQty, netQty float64
	buyValue, sellValue     float64
	mtm                     float64
}

// Build nets daywise rows by segment and trading symbol. Rows come back
// ordered by symbol, then segment.
func Build(rows []types.TradeRow) Table {
	logger := log.With().Str("service", "positions").Logger()

	groups := make(map[nettingKey]*netting)
	order := make([]*netting, 0)
	for _, row := range rows {
		key := nettingKey{
			segment: strings.TrimSpace(row.ExchangeSegment),
			symbol:  strings.TrimSpace(row.TradingSymbol),
		}
		n, ok := groups[key]
		if !ok {
			n = &netting{nettingKey: key}
			groups[key] = n
			order = append(order, n)
		}
		n.buyQty += row.BuyQty
		n.sellQty += row.SellQty
		n.netQty += row.NetQty
		n.buyValue += row.BuyValue
		n.sellValue += row.SellValue
		n.mtm += row.MarkToMarket
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].symbol != order[j].symbol {
			return order[i].symbol < order[j].symbol
		}
		return order[i].segment < order[j].segment
	})

	table := Table{Rows: make([]Row, 0, len(order))}
	for i, n := range order {
		row := Row{
			Sr:         i + 1,
			Security:   n.symbol,
			Segment:    n.segment,
			BuyQty:     wholeQty(n.buyQty),
			BuyRate:    rate(n.buyValue, n.buyQty),
			BuyAmount:  n.buyValue,
			SellQty:    wholeQty(n.sellQty),
			SellRate:   rate(n.sellValue, n.sellQty),
			SellAmount: n.sellValue,
			NetQty:     wholeQty(n.netQty),
			NetAmount:  n.sellValue - n.buyValue,
			MTMAmount:  n.mtm,
		}
		table.Rows = append(table.Rows, row)

		table.Totals.BuyQty += row.BuyQty
		table.Totals.BuyAmount += row.BuyAmount
		table.Totals.SellQty += row.SellQty
		table.Totals.SellAmount += row.SellAmount
		table.Totals.MTMAmount += row.MTMAmount
	}
	table.Totals.NetAmount = table.Totals.SellAmount - table.Totals.BuyAmount

	logger.Debug().
		Int("rows", len(rows)).
		Int("securities", len(table.Rows)).
		Float64("net_amount", table.Totals.NetAmount).
		Msg("netted positions")

	return table
}

func rate(amount, qty float64) float64 {
	if qty > 0 {
		return amount / qty
	}
	return 0
}

// wholeQty rounds half to even.
func wholeQty(v float64) int64 {
	return int64(math.RoundToEven(v))
}
