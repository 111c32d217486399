package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/pkg/db/pagination"
)

type AppendEntryRequest struct {
	Kind          EntryKind
	Amount        decimal.Decimal
	Description   string
	County        string
	Month         string
	ClientID      *snowflake.ID
	SiteID        *snowflake.ID
	TransactionID *snowflake.ID
}

type EntryFilter struct {
	County   string
	ClientID *snowflake.ID
	Kind     EntryKind
}

type ListEntriesRequest struct {
	PageToken string
	PageSize  int32
	County    string
	ClientID  *snowflake.ID
	Kind      EntryKind
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []LedgerEntry `json:"entries"`
}

type Service interface {
	Append(context.Context, AppendEntryRequest) (LedgerEntry, error)
	List(ctx context.Context, sc scope.Scope, req ListEntriesRequest) (ListEntriesResponse, error)
	Balance(ctx context.Context, sc scope.Scope) (decimal.Decimal, error)
	BalanceByCounty(ctx context.Context, sc scope.Scope, county string) (decimal.Decimal, error)
	SummaryByCounty(ctx context.Context, sc scope.Scope) ([]CountySummary, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidKind         = errors.New("invalid_entry_kind")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCounty       = errors.New("invalid_county")
	ErrInvalidMonth        = errors.New("invalid_month")
	ErrScopeViolation      = errors.New("scope_violation")
	ErrClientNotFound      = errors.New("client_not_found")
)

// NormalizeKind lower-cases and validates an entry kind.
func NormalizeKind(kind EntryKind) (EntryKind, error) {
	switch EntryKind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case EntryKindDeposit:
		return EntryKindDeposit, nil
	case EntryKindWithdrawal:
		return EntryKindWithdrawal, nil
	case EntryKindAllocation:
		return EntryKindAllocation, nil
	default:
		return "", ErrInvalidKind
	}
}

// ValidateAmount enforces a non-negative fixed-point value with at most
// two decimal places. Direction comes from the entry kind, never from
// a signed amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateMonth accepts an empty month or a YYYY-MM value.
func ValidateMonth(month string) error {
	if month == "" {
		return nil
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidMonth
	}
	return nil
}
