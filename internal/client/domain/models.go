package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Client carries the ledger-relevant fields of a housing client. The
// full client record (contact details, case notes, documents) lives in
// the administration shell; this row holds only what the pool fund
// needs: the county used to scope deposits, and the directly-settable
// balance and credit limit.
//
// CurrentBalance is a manual override scalar maintained by
// administrative action. It is intentionally NOT derived from, or
// reconciled against, the computed pool ledger balance.
type Client struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	OrgID          snowflake.ID    `gorm:"not null;index"`
	County         string          `gorm:"type:text"`
	SiteID         *snowflake.ID   `gorm:"index"`
	CurrentBalance decimal.Decimal `gorm:"type:numeric;not null"`
	CreditLimit    decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "pool_clients" }
