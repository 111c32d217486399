package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/scope"
	"gorm.io/datatypes"
)

type CreateTransactionRequest struct {
	Kind          TransactionKind
	Amount        decimal.Decimal
	Description   string
	Month         string
	ApplicationID *snowflake.ID
	ClientID      *snowflake.ID
	PaymentMeta   datatypes.JSONMap
}

type ListTransactionsRequest struct {
	Kind          TransactionKind
	ApplicationID *snowflake.ID
	ClientID      *snowflake.ID
}

type Service interface {
	Create(context.Context, CreateTransactionRequest) (Transaction, error)
	List(ctx context.Context, sc scope.Scope, req ListTransactionsRequest) ([]Transaction, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidKind         = errors.New("invalid_transaction_kind")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

// NormalizeKind lower-cases and validates a transaction kind.
func NormalizeKind(kind TransactionKind) (TransactionKind, error) {
	switch TransactionKind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case TransactionKindRent:
		return TransactionKindRent, nil
	case TransactionKindDeposit:
		return TransactionKindDeposit, nil
	case TransactionKindApplicationFee:
		return TransactionKindApplicationFee, nil
	case TransactionKindCountyReimbursement:
		return TransactionKindCountyReimbursement, nil
	default:
		return "", ErrInvalidKind
	}
}

// ValidateAmount enforces a non-negative fixed-point value with at most
// two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
