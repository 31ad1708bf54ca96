package billing

import (
	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/positions"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/upload"
)

// DebugPayload is the JSON view of a computed bill used to reconcile it
// against the broker PDF.
type DebugPayload struct {
	Status           string                `json:"status"`
	RunID            string                `json:"run_id"`
	Account          string                `json:"account"`
	TradeDate        string                `json:"trade_date"`
	Daywise          DaywiseSummary        `json:"daywise"`
	Netwise          NetwiseSummary        `json:"netwise"`
	Positions        positions.Table       `json:"positions"`
	RateCard         RateCardSummary       `json:"rate_card"`
	TurnoverBases    charges.TurnoverBases `json:"turnover_bases"`
	Charges          *charges.Result       `json:"charges"`
	Debug            *charges.Debug        `json:"debug"`
	ExpirySettlement SettlementSummary     `json:"expiry_settlement"`
	ExpiryLotFee     LotFeeSummary         `json:"expiry_lot_fee"`
	ClosingPositions positions.Closing     `json:"closing_positions"`
}

type DaywiseSummary struct {
	Rows         int      `json:"rows"`
	Columns      []string `json:"columns"`
	BuyTurnover  float64  `json:"buy_turnover"`
	SellTurnover float64  `json:"sell_turnover"`
	NetAmount    float64  `json:"net_amount"`
}

type NetwiseSummary struct {
	Rows              int      `json:"rows"`
	Columns           []string `json:"columns"`
	NonzeroNetQtyRows int      `json:"nonzero_netqty_rows"`
}

type RateCardSummary struct {
	Source     string          `json:"source"`
	RulesCount int             `json:"rules_count"`
	Sample     []ratecard.Rule `json:"sample"`
}

type SettlementSummary struct {
	Rows    []settlement.Row `json:"rows"`
	Pending []settlement.Row `json:"pending"`
	Total   float64          `json:"total"`
}

type LotFeeSummary struct {
	Rows  []settlement.LotFeeRow `json:"rows"`
	Total float64                `json:"total"`
}

// Debug builds the debug view of g.
func (s *Service) Debug(g *Generated) DebugPayload {
	b := g.Bill

	sample := g.Card.Rules
	if len(sample) > s.opts.DebugSampleRows {
		sample = sample[:s.opts.DebugSampleRows]
	}

	var nonzero int
	for _, rec := range g.Netwise.Rows {
		if v, _ := g.Netwise.Number(rec, upload.ColNetQty); v != 0 {
			nonzero++
		}
	}

	return DebugPayload{
		Status:    "parsed",
		RunID:     g.RunID,
		Account:   b.Account,
		TradeDate: b.TradeDate,
		Daywise: DaywiseSummary{
			Rows:         len(g.Daywise.Rows),
			Columns:      g.Daywise.Columns,
			BuyTurnover:  g.Daywise.Sum(upload.ColBuyValue),
			SellTurnover: g.Daywise.Sum(upload.ColSellValue),
			NetAmount:    g.Daywise.Sum(upload.ColMarkToMarket),
		},
		Netwise: NetwiseSummary{
			Rows:              len(g.Netwise.Rows),
			Columns:           g.Netwise.Columns,
			NonzeroNetQtyRows: nonzero,
		},
		Positions: b.Positions,
		RateCard: RateCardSummary{
			Source:     g.Card.Source,
			RulesCount: len(g.Card.Rules),
			Sample:     sample,
		},
		TurnoverBases: b.Debug.TurnoverBases,
		Charges:       b.Charges,
		Debug:         b.Debug,
		ExpirySettlement: SettlementSummary{
			Rows:    b.Settlement.Settled,
			Pending: b.Settlement.Pending,
			Total:   b.Settlement.Total,
		},
		ExpiryLotFee: LotFeeSummary{
			Rows:  b.LotFees,
			Total: b.LotFee,
		},
		ClosingPositions: b.Closing,
	}
}
