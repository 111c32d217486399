package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateClientRequest struct {
	County string
	SiteID *snowflake.ID
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	GetBalance(ctx context.Context, clientID snowflake.ID) (decimal.Decimal, error)
	SetBalance(ctx context.Context, clientID snowflake.ID, balance decimal.Decimal) (Client, error)
	SetCreditLimit(ctx context.Context, clientID snowflake.ID, limit decimal.Decimal) (Client, error)
	// SetGlobalCreditLimit applies the limit to every client of the
	// calling tenant. Returns the number of rows updated.
	SetGlobalCreditLimit(ctx context.Context, limit decimal.Decimal) (int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrNotFound            = errors.New("not_found")
)
