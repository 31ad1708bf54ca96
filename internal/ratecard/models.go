package ratecard

// Side is the notional a rule is quoted against.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideBoth Side = "BOTH"
)

// Rule keys the charge engine looks up. They are derived from the rate card
// labels, so a card whose labels drift will surface as missing rules.
const (
	KeyNSETurnover  = "NSE_TURNOVER"
	KeyNSEClearing  = "NSE_CLEARING"
	KeyNSESebi      = "NSE_SEBIFEES"
	KeyNSESTT       = "NSE_STT"
	KeyNSEStampDuty = "NSE_STAMPDUTY"
	KeyBSETurnover  = "BSE_TURNOVER"
	KeyBSEClearing  = "BSE_CLEARING"
	KeyBSESebi      = "BSE_SEBIFEES"
	KeyBSESTT       = "BSE_STT"
	KeyBSEStampDuty = "BSE_STAMPDUTY"
	KeyIPFT         = "IPFT"
)

// RequiredKeys are the rules a complete F&O card is expected to carry.
var RequiredKeys = []string{
	KeyNSETurnover, KeyNSEClearing, KeyNSESebi, KeyNSESTT, KeyNSEStampDuty,
	KeyBSETurnover, KeyBSEClearing, KeyBSESebi, KeyBSESTT, KeyBSEStampDuty,
	KeyIPFT,
}

// Rates are stored in percent as they appear on the card.
type Rates struct {
	Futures    float64 `json:"futures"`
	Options    float64 `json:"options"`
	Assignment float64 `json:"assignment"`
}

type Rule struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	BaseSide Side   `json:"base_side"`
	GST      bool   `json:"gst"`
	Rates    Rates  `json:"rates"`
}

// FuturesRate returns the futures rate as a fraction.
func (r Rule) FuturesRate() float64 { return Effective(r.Rates.Futures) }

// OptionsRate returns the options rate as a fraction.
func (r Rule) OptionsRate() float64 { return Effective(r.Rates.Options) }

// AssignmentRate returns the exercise/assignment rate as a fraction.
func (r Rule) AssignmentRate() float64 { return Effective(r.Rates.Assignment) }

// Effective converts a percentage rate to a multiplier.
func Effective(percent float64) float64 {
	return percent / 100.0
}

// RateCard is an immutable, keyed view of the parsed rules.
type RateCard struct {
	Source string `json:"source"`
	Rules  []Rule `json:"rules"`

	byKey map[string]Rule
}

func New(source string, rules []Rule) *RateCard {
	byKey := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		byKey[rule.Key] = rule
	}
	return &RateCard{
		Source: source,
		Rules:  rules,
		byKey:  byKey,
	}
}

// Rule looks a rule up by key.
func (rc *RateCard) Rule(key string) (Rule, bool) {
	if rc == nil {
		return Rule{}, false
	}
	rule, ok := rc.byKey[key]
	return rule, ok
}

// MissingKeys reports which of RequiredKeys the card lacks.
func (rc *RateCard) MissingKeys() []string {
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := rc.Rule(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
