package charges

import (
	"github.com/ksred/klear-bill/internal/classify"
	"github.com/ksred/klear-bill/internal/types"
)

// SegmentBases are the notional sums for one segment.
type SegmentBases struct {
	FuturesBuy  float64 `json:"futures_buy"`
	FuturesSell float64 `json:"futures_sell"`
	OptionsBuy  float64 `json:"options_buy"`
	OptionsSell float64 `json:"options_sell"`
}

func (b SegmentBases) FuturesTurnover() float64 { return b.FuturesBuy + b.FuturesSell }
func (b SegmentBases) OptionsTurnover() float64 { return b.OptionsBuy + b.OptionsSell }
func (b SegmentBases) BuyValue() float64        { return b.FuturesBuy + b.OptionsBuy }
func (b SegmentBases) SellValue() float64       { return b.FuturesSell + b.OptionsSell }

// Total is the full buy plus sell turnover of the segment.
func (b SegmentBases) Total() float64 {
	return b.FuturesTurnover() + b.OptionsTurnover()
}

// Plus returns the bucket-wise sum of two bases.
func (b SegmentBases) Plus(o SegmentBases) SegmentBases {
	return SegmentBases{
		FuturesBuy:  b.FuturesBuy + o.FuturesBuy,
		FuturesSell: b.FuturesSell + o.FuturesSell,
		OptionsBuy:  b.OptionsBuy + o.OptionsBuy,
		OptionsSell: b.OptionsSell + o.OptionsSell,
	}
}

func (b SegmentBases) add(instrument types.Instrument, buy, sell float64) SegmentBases {
	if instrument == types.InstrumentOptions {
		b.OptionsBuy += buy
		b.OptionsSell += sell
	} else {
		b.FuturesBuy += buy
		b.FuturesSell += sell
	}
	return b
}

// TurnoverSummary is the rounded view of a segment's bases.
type TurnoverSummary struct {
	FuturesTurnover float64 `json:"futures_turnover"`
	OptionsTurnover float64 `json:"options_turnover"`
	BuyValue        float64 `json:"buy_value"`
	SellValue       float64 `json:"sell_value"`
}

func summarize(b SegmentBases) TurnoverSummary {
	return TurnoverSummary{
		FuturesTurnover: Round2(b.FuturesTurnover()),
		OptionsTurnover: Round2(b.OptionsTurnover()),
		BuyValue:        Round2(b.BuyValue()),
		SellValue:       Round2(b.SellValue()),
	}
}

type TurnoverBases struct {
	NFO      TurnoverSummary `json:"nfo"`
	BFO      TurnoverSummary `json:"bfo"`
	Combined TurnoverSummary `json:"combined"`
}

type InstrumentCounts struct {
	Options int    `json:"options"`
	Futures int    `json:"futures"`
	Note    string `json:"note"`
}

// Turnover is the result of folding the daywise rows.
type Turnover struct {
	NFO         SegmentBases
	BFO         SegmentBases
	Defaults    classify.SegmentDefaults
	Instruments InstrumentCounts
}

// Segment returns the bases for seg.
func (t Turnover) Segment(seg types.Segment) SegmentBases {
	if seg == types.SegmentBFO {
		return t.BFO
	}
	return t.NFO
}

// Combined returns the cross-segment bases.
func (t Turnover) Combined() SegmentBases {
	return t.NFO.Plus(t.BFO)
}

// Summary returns the rounded per-segment and combined view.
func (t Turnover) Summary() TurnoverBases {
	return TurnoverBases{
		NFO:      summarize(t.NFO),
		BFO:      summarize(t.BFO),
		Combined: summarize(t.Combined()),
	}
}

// AggregateTurnover folds daywise rows into per-segment turnover bases.
func AggregateTurnover(rows []types.TradeRow) Turnover {
	acc := Turnover{
		Defaults: classify.NewSegmentDefaults(),
		Instruments: InstrumentCounts{
			Note: "Instrument type inferred from TradingSymbol (CE/PE => options).",
		},
	}

	for _, row := range rows {
		acc = acc.fold(classify.Row(row))
	}
	return acc
}

func (t Turnover) fold(c classify.Classified) Turnover {
	if c.Defaulted {
		t.Defaults.Add(c.DefaultedRow())
	}

	if c.Instrument == types.InstrumentOptions {
		t.Instruments.Options++
	} else {
		t.Instruments.Futures++
	}

	if c.Segment == types.SegmentBFO {
		t.BFO = t.BFO.add(c.Instrument, c.Row.BuyValue, c.Row.SellValue)
	} else {
		t.NFO = t.NFO.add(c.Instrument, c.Row.BuyValue, c.Row.SellValue)
	}
	return t
}

// NetAmount is sell notional less buy notional over the daywise rows.
func NetAmount(rows []types.TradeRow) float64 {
	var buy, sell float64
	for _, row := range rows {
		buy += row.BuyValue
		sell += row.SellValue
	}
	return sell - buy
}
