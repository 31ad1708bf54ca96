// Package bill runs the full billing pipeline for one account: settlement,
// charges, positions and the printable context.
package bill

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/positions"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/report"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/types"
)

// Request is one account's uploaded rows.
type Request struct {
	Account   string
	TradeDate string
	Daywise   []types.TradeRow
	Netwise   []types.TradeRow
	Closes    settlement.ManualCloses
}

// Bill is everything produced for one account.
type Bill struct {
	Account    string                 `json:"account"`
	TradeDate  string                 `json:"trade_date"`
	Charges    *charges.Result        `json:"charges"`
	Debug      *charges.Debug         `json:"debug"`
	Positions  positions.Table        `json:"positions"`
	Settlement settlement.Outcome     `json:"-"`
	LotFee     float64                `json:"expiry_lot_fee_total"`
	LotFees    []settlement.LotFeeRow `json:"expiry_lot_fees"`
	Closing    positions.Closing      `json:"closing_positions"`
	Context    report.Context         `json:"-"`
}

// Generate bills one account against card.
func Generate(req Request, card *ratecard.RateCard) (*Bill, error) {
	logger := log.With().
		Str("account", req.Account).
		Str("trade_date", req.TradeDate).
		Str("service", "bill").
		Logger()

	if strings.TrimSpace(req.Account) == "" {
		return nil, types.NewInputError("account is required")
	}
	billDate, err := ParseTradeDate(req.TradeDate)
	if err != nil {
		return nil, err
	}

	outcome := settlement.Resolve(req.Netwise, billDate, req.Closes)
	lotFee, lotFees := settlement.LotFee(req.Netwise, billDate)

	result, debug, err := charges.Compute(charges.Input{
		Account:               req.Account,
		Daywise:               req.Daywise,
		Netwise:               req.Netwise,
		ExpirySettlementTotal: outcome.Total,
	}, card)
	if err != nil {
		logger.Error().Err(err).Msg("charge computation failed")
		return nil, fmt.Errorf("compute charges for %s: %w", req.Account, err)
	}

	table := positions.Build(req.Daywise)
	closing := positions.BuildClosing(outcome.Closing, billDate)

	b := &Bill{
		Account:    req.Account,
		TradeDate:  req.TradeDate,
		Charges:    result,
		Debug:      debug,
		Positions:  table,
		Settlement: outcome,
		LotFee:     lotFee,
		LotFees:    lotFees,
		Closing:    closing,
		Context:    report.BuildContext(req.Account, req.TradeDate, req.Daywise, table, result),
	}

	logger.Info().
		Float64("total_bill_amount", result.TotalBillAmount).
		Float64("settlement_total", outcome.Total).
		Int("pending", len(outcome.Pending)).
		Str("closing_status", closing.Status).
		Msg("bill generated")

	return b, nil
}

// WithEdits returns a copy of b whose charges and printed expenses reflect
// the overrides and additions. b is not modified.
func (b *Bill) WithEdits(overrides []charges.Override, additions []charges.Addition) (*Bill, error) {
	if len(overrides) == 0 && len(additions) == 0 {
		return b, nil
	}
	edited, err := charges.ApplyEdits(b.Charges, overrides, additions)
	if err != nil {
		return nil, err
	}

	out := *b
	out.Charges = edited
	out.Context.Expenses = report.ExpenseRows(edited.BillLines)
	out.Context.TotalExpenses = edited.TotalExpenses
	out.Context.TotalBillAmount = edited.TotalBillAmount
	return &out, nil
}

// Filename is the download name of the bill PDF.
func (b *Bill) Filename() string {
	return Filename(b.Account, b.TradeDate)
}

// Document pairs the bill with its closing positions for rendering.
func (b *Bill) Document() report.Account {
	return report.Account{Context: b.Context, Closing: b.Closing}
}

// Summary is the admin summary line for the bill.
func (b *Bill) Summary() report.SummaryRow {
	return report.SummaryRow{
		Account:         b.Account,
		NetAmount:       b.Charges.NetAmount,
		TotalExpenses:   b.Charges.TotalExpenses,
		TotalBillAmount: b.Charges.TotalBillAmount,
		SettlementTotal: b.Settlement.Total,
		ClosingValue:    b.Closing.Total,
		PendingCount:    len(b.Settlement.Pending),
		ClosingStatus:   b.Closing.Status,
	}
}

// ParseTradeDate reads the trade date form value.
func ParseTradeDate(value string) (time.Time, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, types.NewInputError("trade_date is required")
	}
	t, ok := positions.ParseDate(text)
	if !ok {
		return time.Time{}, types.NewInputError("Invalid trade_date: %s", text)
	}
	return t, nil
}

// Filename builds Bill_<account>_<date>.pdf from sanitized parts.
func Filename(account, tradeDate string) string {
	return fmt.Sprintf("Bill_%s_%s.pdf", SanitizeFilenamePart(account), SanitizeFilenamePart(tradeDate))
}

// SanitizeFilenamePart keeps letters, digits, '-', '_' and '.', replacing
// anything else with '_'.
func SanitizeFilenamePart(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "UNKNOWN"
	}
	return b.String()
}
