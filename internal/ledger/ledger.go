// Package ledger keeps a write-only audit trail of generated bills.
package ledger

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-bill/internal/batch"
	"github.com/ksred/klear-bill/internal/bill"
	"github.com/ksred/klear-bill/internal/charges"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service records bill runs. A Service without a database records nothing.
type Service struct {
	db *Database
}

func NewService(db *Database) *Service {
	return &Service{db: db}
}

// Enabled reports whether runs are persisted.
func (s *Service) Enabled() bool {
	return s != nil && s.db != nil
}

// NewRunID returns a fresh BILL_ identifier.
func NewRunID() string {
	return "BILL_" + uuid.New().String()
}

// RecordBill logs a single or edited bill. Failures are logged, never
// returned.
func (s *Service) RecordBill(mode string, b *bill.Bill) string {
	run := fromBill(b)
	run.Mode = mode
	s.write([]BillRun{run})
	return run.RunID
}

// RecordEdit logs a bill recomputed from edits.
func (s *Service) RecordEdit(account, tradeDate string, result *charges.Result) string {
	run := BillRun{
		RunID:     NewRunID(),
		Account:   account,
		TradeDate: tradeDate,
		Mode:      ModeEdit,
		Status:    StatusSuccess,
	}
	applyResult(&run, result)
	s.write([]BillRun{run})
	return run.RunID
}

// RecordBatch logs every billed and failed account of a batch.
func (s *Service) RecordBatch(res *batch.Result) {
	m := res.Manifest
	runs := make([]BillRun, 0, len(res.Bills)+len(m.Failures))
	for _, b := range res.Bills {
		run := fromBill(b)
		run.Mode = ModeBatch
		run.BatchID = m.BatchID
		runs = append(runs, run)
	}
	for _, f := range m.Failures {
		runs = append(runs, BillRun{
			RunID:     NewRunID(),
			BatchID:   m.BatchID,
			Account:   f.Key,
			TradeDate: m.TradeDate,
			Mode:      ModeBatch,
			Status:    StatusFailed,
			Error:     f.Error,
		})
	}
	s.write(runs)
}

// Recent lists the latest runs, newest first.
func (s *Service) Recent(account string, limit int) ([]BillRun, error) {
	if !s.Enabled() {
		return []BillRun{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.db.ListBillRuns(account, limit)
}

func (s *Service) write(runs []BillRun) {
	if !s.Enabled() {
		return
	}
	if err := s.db.CreateBillRuns(runs); err != nil {
		log.Warn().Err(err).Int("runs", len(runs)).Str("service", "ledger").Msg("failed to record bill runs")
	}
}

func fromBill(b *bill.Bill) BillRun {
	run := BillRun{
		RunID:           NewRunID(),
		Account:         b.Account,
		TradeDate:       b.TradeDate,
		Status:          StatusSuccess,
		SettlementTotal: b.Settlement.Total,
		PendingCount:    len(b.Settlement.Pending),
	}
	applyResult(&run, b.Charges)
	return run
}

func applyResult(run *BillRun, result *charges.Result) {
	if result == nil {
		return
	}
	run.GSTBase = result.GSTBase
	run.TotalExpenses = result.TotalExpenses
	run.NetAmount = result.NetAmount
	run.TotalBillAmount = result.TotalBillAmount
	if run.SettlementTotal == 0 {
		run.SettlementTotal = result.ExpirySettlementTotal
	}
}
