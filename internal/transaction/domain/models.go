package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionKind labels what an application payment covered.
type TransactionKind string

const (
	TransactionKindRent                TransactionKind = "rent"
	TransactionKindDeposit             TransactionKind = "deposit"
	TransactionKindApplicationFee      TransactionKind = "application_fee"
	TransactionKindCountyReimbursement TransactionKind = "county_reimbursement"
)

// Transaction is the immutable money-movement record behind an
// application or a direct tenant action. One approval may generate
// several transactions (rent, deposit, fee, reimbursement). Rows are
// never updated or deleted.
type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	OrgID         snowflake.ID      `gorm:"not null;index"`
	ApplicationID *snowflake.ID     `gorm:"index"`
	ClientID      *snowflake.ID     `gorm:"index"`
	Kind          TransactionKind   `gorm:"type:text;not null"`
	Amount        decimal.Decimal   `gorm:"type:numeric;not null"`
	Description   string            `gorm:"type:text"`
	PaymentMeta   datatypes.JSONMap `gorm:"type:json"`
	Month         string            `gorm:"type:text"`
	CreatedAt     time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "pool_transactions" }
