package ledger

import "time"

// Run modes
const (
	ModeSingle = "single"
	ModeEdit   = "edit"
	ModeBatch  = "batch"
)

// Run statuses
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// BillRun is one generated bill in the audit ledger.
type BillRun struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	RunID           string    `gorm:"uniqueIndex;not null" json:"run_id"`
	BatchID         string    `gorm:"index" json:"batch_id,omitempty"`
	Account         string    `gorm:"index;not null" json:"account"`
	TradeDate       string    `gorm:"not null" json:"trade_date"`
	Mode            string    `gorm:"not null" json:"mode"`
	Status          string    `gorm:"not null" json:"status"`
	GSTBase         float64   `json:"gst_base"`
	TotalExpenses   float64   `json:"total_expenses"`
	NetAmount       float64   `json:"net_amount"`
	TotalBillAmount float64   `json:"total_bill_amount"`
	SettlementTotal float64   `json:"settlement_total"`
	PendingCount    int       `json:"pending_count"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
