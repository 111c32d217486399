package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EntryKind classifies the direction of a pool fund movement.
type EntryKind string

const (
	// EntryKindDeposit adds surplus subsidy money to the pool.
	EntryKindDeposit EntryKind = "deposit"
	// EntryKindWithdrawal removes money from the pool.
	EntryKindWithdrawal EntryKind = "withdrawal"
	// EntryKindAllocation earmarks pool money for a purpose. It reduces
	// the available balance the same way a withdrawal does.
	EntryKindAllocation EntryKind = "allocation"
)

// LedgerEntry is an immutable record of pool fund movement. Entries are
// created by the approval cascade or by direct tenant action, and are
// never updated or deleted; the table is the audit trail.
type LedgerEntry struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	OrgID         snowflake.ID    `gorm:"not null;index"`
	TransactionID *snowflake.ID   `gorm:"index"`
	ClientID      *snowflake.ID   `gorm:"index"`
	SiteID        *snowflake.ID   `gorm:"index"`
	Kind          EntryKind       `gorm:"type:text;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric;not null"`
	Description   string          `gorm:"type:text"`
	County        string          `gorm:"type:text;not null;index"`
	Month         string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "pool_ledger_entries" }

// Signed returns the entry amount with the sign its kind contributes to
// a balance fold: deposits positive, withdrawals and allocations negative.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Kind == EntryKindDeposit {
		return e.Amount
	}
	return e.Amount.Neg()
}

// CountySummary aggregates one county's slice of the pool.
type CountySummary struct {
	County           string          `json:"county"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	EntryCount       int             `json:"entry_count"`
	BelowThreshold   bool            `json:"below_threshold"`
}
