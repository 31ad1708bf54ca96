package ledger

import (
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateBillRuns inserts runs in one transaction.
func (d *Database) CreateBillRuns(runs []BillRun) error {
	if len(runs) == 0 {
		return nil
	}
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&runs).Error; err != nil {
			return fmt.Errorf("failed to insert bill runs: %w", err)
		}
		return nil
	})
}

func (d *Database) GetBillRun(runID string) (*BillRun, error) {
	var run BillRun
	if err := d.db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListBillRuns returns the latest runs, optionally for one account.
func (d *Database) ListBillRuns(account string, limit int) ([]BillRun, error) {
	query := d.db.Order("created_at DESC").Order("id DESC").Limit(limit)
	if account != "" {
		query = query.Where("account = ?", account)
	}

	var runs []BillRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch bill runs: %w", err)
	}
	return runs, nil
}
