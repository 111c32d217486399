package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/scope"
)

type CreateRecordRequest struct {
	ClientID         snowflake.ID
	Month            string
	RentAmount       decimal.Decimal
	SubsidyAward     decimal.Decimal
	SubsidyReceived  decimal.Decimal
	ClientObligation decimal.Decimal
	ClientPaid       decimal.Decimal
	ElectricityFee   decimal.Decimal
	AdminFee         decimal.Decimal
	RentLateFee      decimal.Decimal
	Notes            string
}

// UpdateRecordRequest carries a partial edit. Nil fields keep their
// stored values; when any financial field is set the record's
// MonthPoolTotal is recomputed from the merged set.
type UpdateRecordRequest struct {
	RentAmount       *decimal.Decimal
	SubsidyAward     *decimal.Decimal
	SubsidyReceived  *decimal.Decimal
	ClientObligation *decimal.Decimal
	ClientPaid       *decimal.Decimal
	ElectricityFee   *decimal.Decimal
	AdminFee         *decimal.Decimal
	RentLateFee      *decimal.Decimal
	Notes            *string
}

type Service interface {
	// CreateRecord derives the month's pool contribution, advances the
	// organization's running total, and persists both. Concurrent
	// creations that race on the running total fail with
	// ErrConcurrencyConflict; the caller retries.
	CreateRecord(ctx context.Context, req CreateRecordRequest) (MonthlyContributionRecord, error)

	// UpdateRecord recomputes MonthPoolTotal from the merged fields.
	// Stored RunningPoolTotal snapshots, on this record and later
	// ones, are left as written; RunningTotal stays correct because it
	// recomputes.
	UpdateRecord(ctx context.Context, id snowflake.ID, req UpdateRecordRequest) (MonthlyContributionRecord, error)

	GetRecord(ctx context.Context, id snowflake.ID) (MonthlyContributionRecord, error)
	ListRecords(ctx context.Context, sc scope.Scope, req ListRecordsRequest) ([]MonthlyContributionRecord, error)

	// MonthlyTotal sums MonthPoolTotal across all clients for one month.
	MonthlyTotal(ctx context.Context, sc scope.Scope, month string) (decimal.Decimal, error)
	// RunningTotal sums MonthPoolTotal over every record, fresh.
	RunningTotal(ctx context.Context, sc scope.Scope) (decimal.Decimal, error)
}

type ListRecordsRequest struct {
	ClientID *snowflake.ID
	Month    string
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidMonth         = errors.New("invalid_month")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrMonthAlreadyRecorded = errors.New("month_already_recorded")
	ErrConcurrencyConflict  = errors.New("concurrency_conflict")
	ErrNotFound             = errors.New("not_found")
	ErrClientNotFound       = errors.New("client_not_found")
	ErrScopeViolation       = errors.New("scope_violation")
)

// ValidateMonth requires the YYYY-MM accounting period format.
func ValidateMonth(month string) error {
	if strings.TrimSpace(month) == "" {
		return ErrInvalidMonth
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidMonth
	}
	return nil
}

// ValidateAmount enforces a non-negative fixed-point value with at most
// two decimal places. Inputs are validated individually; the derived
// MonthPoolTotal may still be negative.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
