package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/klear-bill/internal/ledger"
)

// AddBillRuns creates the bill run ledger and its lookup indexes.
func AddBillRuns(db *gorm.DB) error {
	if err := db.AutoMigrate(&ledger.BillRun{}); err != nil {
		return err
	}

	indexes := []string{
		// Operators list runs per account, newest first
		`CREATE INDEX IF NOT EXISTS idx_bill_runs_account_created_at
		 ON bill_runs(account, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_bill_runs_trade_date
		 ON bill_runs(trade_date)`,

		`CREATE INDEX IF NOT EXISTS idx_bill_runs_status
		 ON bill_runs(status)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
