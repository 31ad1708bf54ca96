package settlement

// Settlement outcomes for an expiring option position.
const (
	StatusExercise  = "EXERCISE"
	StatusAssign    = "ASSIGN"
	StatusExpireOTM = "EXPIRE_OTM"

	// Pending reasons
	StatusMissingManualClose = "MISSING_MANUAL_CLOSE"
	StatusMissingStrikePrice = "MISSING_STRIKE_PRICE"
)

const (
	VerificationPending = "PENDING"
	VerificationManual  = "VERIFIED_MANUAL"

	SourceManualInput = "MANUAL_INPUT"
)

// Row is one expiring option position, either settled or pending.
type Row struct {
	TradingSymbol      string   `json:"trading_symbol"`
	Expiry             string   `json:"expiry"`
	OptionType         string   `json:"option_type"`
	Strike             *float64 `json:"strike"`
	NetQty             float64  `json:"net_qty"`
	UnderlyingSymbol   string   `json:"underlying_symbol"`
	UnderlyingClose    *float64 `json:"underlying_close"`
	Intrinsic          *float64 `json:"intrinsic"`
	Multiplier         float64  `json:"multiplier,omitempty"`
	CloseDate          string   `json:"close_date"`
	Source             string   `json:"source"`
	VerificationStatus string   `json:"verification_status"`
	Status             string   `json:"status"`
	ActionStatus       string   `json:"action_status"`
	SettlementAmount   float64  `json:"settlement_amount"`
}

// IsPending reports whether the row is waiting on missing input.
func (r Row) IsPending() bool {
	return r.Status == StatusMissingManualClose || r.Status == StatusMissingStrikePrice
}
