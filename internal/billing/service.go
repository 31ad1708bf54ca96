// Package billing exposes bill generation, edits and admin batches over
// HTTP.
package billing

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/batch"
	"github.com/ksred/klear-bill/internal/bill"
	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/ledger"
	"github.com/ksred/klear-bill/internal/ratecard"
	"github.com/ksred/klear-bill/internal/report"
	"github.com/ksred/klear-bill/internal/settlement"
	"github.com/ksred/klear-bill/internal/types"
	"github.com/ksred/klear-bill/internal/upload"
)

type Options struct {
	MaxErrorLength  int
	DebugSampleRows int
}

// Service wires uploads, the rate card and the ledger around the bill
// pipeline.
type Service struct {
	cards *ratecard.Cache
	runs  *ledger.Service
	opts  Options
}

func NewService(cards *ratecard.Cache, runs *ledger.Service, opts Options) *Service {
	if opts.MaxErrorLength <= 0 {
		opts.MaxErrorLength = batch.DefaultMaxErrorLength
	}
	if opts.DebugSampleRows <= 0 {
		opts.DebugSampleRows = 5
	}
	return &Service{cards: cards, runs: runs, opts: opts}
}

// GenerateRequest is one account's upload.
type GenerateRequest struct {
	Account   string
	TradeDate string
	Daywise   io.Reader
	Netwise   io.Reader
	Closes    settlement.ManualCloses
	Overrides []charges.Override
	Additions []charges.Addition
}

// Generated is a bill together with the tables it was built from.
type Generated struct {
	RunID   string
	Bill    *bill.Bill
	Card    *ratecard.RateCard
	Daywise *upload.Table
	Netwise *upload.Table
}

// RateCard returns the cached rate card.
func (s *Service) RateCard() (*ratecard.RateCard, error) {
	return s.cards.Get()
}

// Generate bills one account and records the run.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Generated, error) {
	logger := log.With().
		Str("account", req.Account).
		Str("service", "billing").
		Logger()

	day, net, err := loadTables(req.Daywise, req.Netwise)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	card, err := s.cards.Get()
	if err != nil {
		logger.Error().Err(err).Msg("rate card unavailable")
		return nil, fmt.Errorf("load rate card: %w", err)
	}

	b, err := bill.Generate(bill.Request{
		Account:   req.Account,
		TradeDate: req.TradeDate,
		Daywise:   day.TradeRows(),
		Netwise:   net.TradeRows(),
		Closes:    req.Closes,
	}, card)
	if err != nil {
		return nil, err
	}

	b, err = b.WithEdits(req.Overrides, req.Additions)
	if err != nil {
		return nil, err
	}

	mode := ledger.ModeSingle
	if len(req.Overrides) > 0 || len(req.Additions) > 0 {
		mode = ledger.ModeEdit
	}
	runID := s.runs.RecordBill(mode, b)

	logger.Info().Str("run_id", runID).Msg("bill ready")
	return &Generated{RunID: runID, Bill: b, Card: card, Daywise: day, Netwise: net}, nil
}

// RenderPDF renders the bill with its closing positions page.
func (s *Service) RenderPDF(g *Generated) ([]byte, error) {
	return report.RenderAccount(g.Bill.Document())
}

// EditRequest applies edits to a previously computed result.
type EditRequest struct {
	Account   string
	TradeDate string
	Charges   *charges.Result
	Overrides []charges.Override
	Additions []charges.Addition
}

// EditResult is the recomputed charge set.
type EditResult struct {
	RunID   string          `json:"run_id"`
	Charges *charges.Result `json:"charges"`
}

// Edit recomputes GST and totals for an edited bill.
func (s *Service) Edit(req EditRequest) (*EditResult, error) {
	if req.Charges == nil {
		return nil, types.NewInputError("charges are required")
	}
	edited, err := charges.ApplyEdits(req.Charges, req.Overrides, req.Additions)
	if err != nil {
		return nil, err
	}
	runID := s.runs.RecordEdit(req.Account, req.TradeDate, edited)
	return &EditResult{RunID: runID, Charges: edited}, nil
}

// BatchRequest is an admin upload covering many accounts.
type BatchRequest struct {
	TradeDate string
	Daywise   io.Reader
	Netwise   io.Reader
	Closes    settlement.ManualCloses
}

// RunBatch bills every account in the admin upload and records each run.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) (*batch.Result, error) {
	day, net, err := loadTables(req.Daywise, req.Netwise)
	if err != nil {
		return nil, err
	}

	card, err := s.cards.Get()
	if err != nil {
		log.Error().Err(err).Str("service", "billing").Msg("rate card unavailable")
		return nil, fmt.Errorf("load rate card: %w", err)
	}

	res, err := batch.Run(ctx, day, net, card, batch.Options{
		TradeDate:      req.TradeDate,
		Closes:         req.Closes,
		MaxErrorLength: s.opts.MaxErrorLength,
	})
	if err != nil {
		return nil, err
	}

	s.runs.RecordBatch(res)
	return res, nil
}

// Runs lists recent ledger entries.
func (s *Service) Runs(account string, limit int) ([]ledger.BillRun, error) {
	return s.runs.Recent(account, limit)
}

func loadTables(daywise, netwise io.Reader) (*upload.Table, *upload.Table, error) {
	if daywise == nil {
		return nil, nil, types.NewInputError("daywise CSV file is required")
	}
	if netwise == nil {
		return nil, nil, types.NewInputError("netwise CSV file is required")
	}

	day, err := upload.Load(daywise, upload.Daywise)
	if err != nil {
		return nil, nil, err
	}
	net, err := upload.Load(netwise, upload.Netwise)
	if err != nil {
		return nil, nil, err
	}
	return day, net, nil
}
