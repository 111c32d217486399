package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MonthlyContributionRecord captures, per client and month, how much a
// subsidy arrangement contributes to the pool. The financial inputs are
// copied from the client's subsidy paperwork; MonthPoolTotal and
// RunningPoolTotal are derived at write time.
//
// RunningPoolTotal is a point-in-time snapshot: later edits to this or
// any other record do not rewrite it. RunningTotal recomputes the live
// figure from MonthPoolTotal sums.
type MonthlyContributionRecord struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	OrgID            snowflake.ID    `gorm:"not null;index"`
	ClientID         snowflake.ID    `gorm:"not null;index"`
	Month            string          `gorm:"type:text;not null"`
	RentAmount       decimal.Decimal `gorm:"type:numeric;not null"`
	SubsidyAward     decimal.Decimal `gorm:"type:numeric;not null"`
	SubsidyReceived  decimal.Decimal `gorm:"type:numeric;not null"`
	ClientObligation decimal.Decimal `gorm:"type:numeric;not null"`
	ClientPaid       decimal.Decimal `gorm:"type:numeric;not null"`
	ElectricityFee   decimal.Decimal `gorm:"type:numeric;not null"`
	AdminFee         decimal.Decimal `gorm:"type:numeric;not null"`
	RentLateFee      decimal.Decimal `gorm:"type:numeric;not null"`
	MonthPoolTotal   decimal.Decimal `gorm:"type:numeric;not null"`
	RunningPoolTotal decimal.Decimal `gorm:"type:numeric;not null"`
	Notes            string          `gorm:"type:text"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (MonthlyContributionRecord) TableName() string { return "monthly_contributions" }

// ContributionTotal is the per-organization running aggregate. The
// version column backs the compare-and-set that serializes concurrent
// record creation.
type ContributionTotal struct {
	OrgID        snowflake.ID    `gorm:"primaryKey"`
	RunningTotal decimal.Decimal `gorm:"type:numeric;not null"`
	Version      int64           `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (ContributionTotal) TableName() string { return "contribution_totals" }

// MonthPoolTotal derives a record's pool contribution from its
// financial inputs: money that came in for the month minus what the
// month cost.
func MonthPoolTotal(subsidyReceived, clientObligation, rentAmount, adminFee, electricityFee, rentLateFee decimal.Decimal) decimal.Decimal {
	return subsidyReceived.
		Add(clientObligation).
		Sub(rentAmount).
		Sub(adminFee).
		Sub(electricityFee).
		Sub(rentLateFee)
}
