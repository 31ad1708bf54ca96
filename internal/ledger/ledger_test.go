package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/klear-bill/internal/batch"
	"github.com/ksred/klear-bill/internal/bill"
	"github.com/ksred/klear-bill/internal/charges"
	"github.com/ksred/klear-bill/internal/settlement"
)

func newTestService(t *testing.T) (*Service, *Database) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&BillRun{}))

	store := NewDatabase(db)
	return NewService(store), store
}

func sampleBill(account string) *bill.Bill {
	return &bill.Bill{
		Account:   account,
		TradeDate: "2026-02-12",
		Charges: &charges.Result{
			GSTBase:         120,
			TotalExpenses:   -160,
			NetAmount:       2000,
			TotalBillAmount: 1840,
		},
		Settlement: settlement.Outcome{
			Total:   240,
			Pending: []settlement.Row{{TradingSymbol: "SENSEX 12FEB2026 CE 84000"}},
		},
	}
}

func TestRecordBill(t *testing.T) {
	svc, store := newTestService(t)

	runID := svc.RecordBill(ModeSingle, sampleBill("PR05"))
	assert.Regexp(t, `^BILL_[0-9a-f-]{36}$`, runID)

	run, err := store.GetBillRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "PR05", run.Account)
	assert.Equal(t, ModeSingle, run.Mode)
	assert.Equal(t, StatusSuccess, run.Status)
	assert.InDelta(t, 1840, run.TotalBillAmount, 1e-9)
	assert.InDelta(t, 240, run.SettlementTotal, 1e-9)
	assert.Equal(t, 1, run.PendingCount)
}

func TestRecordEdit(t *testing.T) {
	svc, store := newTestService(t)

	runID := svc.RecordEdit("PR05", "2026-02-12", &charges.Result{TotalBillAmount: 99, ExpirySettlementTotal: 12})
	run, err := store.GetBillRun(runID)
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, run.Mode)
	assert.InDelta(t, 99, run.TotalBillAmount, 1e-9)
	assert.InDelta(t, 12, run.SettlementTotal, 1e-9)
}

func TestRecordBatchAndRecent(t *testing.T) {
	svc, _ := newTestService(t)

	res := &batch.Result{
		Manifest: batch.Manifest{
			BatchID:   "BATCH_1",
			TradeDate: "2026-02-12",
			Failures:  []batch.Failure{{Key: "Daywise_row_3", Error: "Daywise row missing Account Id."}},
		},
		Bills: []*bill.Bill{sampleBill("PR05"), sampleBill("PR10")},
	}
	svc.RecordBatch(res)
	svc.RecordBill(ModeSingle, sampleBill("PR05"))

	all, err := svc.Recent("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	pr05, err := svc.Recent("PR05", 10)
	require.NoError(t, err)
	require.Len(t, pr05, 2)
	assert.Equal(t, ModeSingle, pr05[0].Mode)
	assert.Equal(t, "BATCH_1", pr05[1].BatchID)

	failed, err := svc.Recent("Daywise_row_3", 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, StatusFailed, failed[0].Status)

	limited, err := svc.Recent("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDisabledService(t *testing.T) {
	svc := NewService(nil)
	assert.False(t, svc.Enabled())

	runID := svc.RecordBill(ModeSingle, sampleBill("PR05"))
	assert.NotEmpty(t, runID)

	runs, err := svc.Recent("PR05", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.db.Migrator().DropTable(&BillRun{}))

	assert.NotPanics(t, func() {
		svc.RecordBill(ModeSingle, sampleBill("PR05"))
	})
}
