package charges

import (
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/types"
)

type segmentRuleKeys struct {
	turnover string
	clearing string
	sebi     string
	stt      string
	stamp    string
}

var ruleKeys = map[types.Segment]segmentRuleKeys{
	types.SegmentNFO: {
		turnover: ratecard.KeyNSETurnover,
		clearing: ratecard.KeyNSEClearing,
		sebi:     ratecard.KeyNSESebi,
		stt:      ratecard.KeyNSESTT,
		stamp:    ratecard.KeyNSEStampDuty,
	},
	types.SegmentBFO: {
		turnover: ratecard.KeyBSETurnover,
		clearing: ratecard.KeyBSEClearing,
		sebi:     ratecard.KeyBSESebi,
		stt:      ratecard.KeyBSESTT,
		stamp:    ratecard.KeyBSEStampDuty,
	},
}

// SegmentAmounts are the raw, unrounded charges for one segment.
type SegmentAmounts struct {
	Turnover float64 `json:"turnover"`
	Clearing float64 `json:"clearing"`
	Sebi     float64 `json:"sebi"`
	STT      float64 `json:"stt"`
	Stamp    float64 `json:"stamp"`
}

// SegmentCharges applies the segment's rules to its bases. Turnover, clearing
// and SEBI fees are charged on buy plus sell, STT on sell only and stamp duty
// on buy only. A rule missing from the card contributes nothing.
func SegmentCharges(seg types.Segment, bases SegmentBases, card *ratecard.RateCard) SegmentAmounts {
	keys := ruleKeys[seg]
	futures, options := bases.FuturesTurnover(), bases.OptionsTurnover()

	return SegmentAmounts{
		Turnover: applyRates(futures, options, card, keys.turnover),
		Clearing: applyRates(futures, options, card, keys.clearing),
		Sebi:     applyRates(futures, options, card, keys.sebi),
		STT:      applyRates(bases.FuturesSell, bases.OptionsSell, card, keys.stt),
		Stamp:    applyRates(bases.FuturesBuy, bases.OptionsBuy, card, keys.stamp),
	}
}

// IPFTAmount applies the IPFT rule to combined cross-segment turnover.
func IPFTAmount(combined SegmentBases, card *ratecard.RateCard) float64 {
	return applyRates(combined.FuturesTurnover(), combined.OptionsTurnover(), card, ratecard.KeyIPFT)
}

func applyRates(futuresBase, optionsBase float64, card *ratecard.RateCard, key string) float64 {
	rule, ok := card.Rule(key)
	if !ok {
		return 0
	}
	return futuresBase*rule.FuturesRate() + optionsBase*rule.OptionsRate()
}

// ValidateTOC fails when a segment has turnover but no usable exchange
// transaction charge rule, since the bill would silently under-charge.
func ValidateTOC(seg types.Segment, bases SegmentBases, card *ratecard.RateCard) error {
	if bases.Total() == 0 {
		return nil
	}

	rule, ok := card.Rule(ruleKeys[seg].turnover)
	if !ok {
		return types.NewConfigError("%s TOC rule missing. Update rate card to match broker PDF.", seg)
	}
	if rule.FuturesRate() == 0 && rule.OptionsRate() == 0 {
		return types.NewConfigError("%s TOC rates are zero. Ensure rate card matches broker PDF.", seg)
	}
	return nil
}
