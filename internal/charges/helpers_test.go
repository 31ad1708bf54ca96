package charges

import (
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

func testRules() []ratecard.Rule {
	return []ratecard.Rule{
		{Key: ratecard.KeyNSETurnover, Label: "NSE Turnover", GST: true, Rates: ratecard.Rates{Futures: 0.00173, Options: 0.03503}},
		{Key: ratecard.KeyNSEClearing, Label: "NSE Clearing", GST: true, Rates: ratecard.Rates{Futures: 0.0005, Options: 0.0005}},
		{Key: ratecard.KeyNSESebi, Label: "NSE SEBIFEES", GST: true, Rates: ratecard.Rates{Futures: 0.0001, Options: 0.0001}},
		{Key: ratecard.KeyNSESTT, Label: "NSE STT", BaseSide: ratecard.SideSell, Rates: ratecard.Rates{Futures: 0.02, Options: 0.05, Assignment: 0.125}},
		{Key: ratecard.KeyNSEStampDuty, Label: "NSE STAMPDUTY", BaseSide: ratecard.SideBuy, Rates: ratecard.Rates{Futures: 0.002, Options: 0.003}},
		{Key: ratecard.KeyBSETurnover, Label: "BSE Turnover", GST: true, Rates: ratecard.Rates{Futures: 0, Options: 0.0325}},
		{Key: ratecard.KeyBSEClearing, Label: "BSE Clearing", GST: true, Rates: ratecard.Rates{Futures: 0.0005, Options: 0.0005}},
		{Key: ratecard.KeyBSESebi, Label: "BSE SEBIFEES", GST: true, Rates: ratecard.Rates{Futures: 0.0001, Options: 0.0001}},
		{Key: ratecard.KeyBSESTT, Label: "BSE STT", BaseSide: ratecard.SideSell, Rates: ratecard.Rates{Futures: 0.02, Options: 0.05, Assignment: 0.125}},
		{Key: ratecard.KeyBSEStampDuty, Label: "BSE STAMPDUTY", BaseSide: ratecard.SideBuy, Rates: ratecard.Rates{Futures: 0.002, Options: 0.003}},
		{Key: ratecard.KeyIPFT, Label: "IPFT", GST: true, Rates: ratecard.Rates{Futures: 0.0001, Options: 0.0005}},
	}
}

func testCard() *ratecard.RateCard {
	return ratecard.New("test", testRules())
}

func cardWithout(key string) *ratecard.RateCard {
	var rules []ratecard.Rule
	for _, rule := range testRules() {
		if rule.Key != key {
			rules = append(rules, rule)
		}
	}
	return ratecard.New("test", rules)
}

func dayRow(symbol, seg string, buy, sell float64) types.TradeRow {
	return types.TradeRow{
		TradingSymbol:   symbol,
		ExchangeSegment: seg,
		BuyValue:        buy,
		SellValue:       sell,
	}
}
