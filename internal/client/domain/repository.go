package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	// FindAnyByID looks a client up without a tenant filter. Used to
	// distinguish "unknown id" from "belongs to another tenant".
	FindAnyByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Client, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, balance decimal.Decimal) (int64, error)
	UpdateCreditLimit(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, limit decimal.Decimal) (int64, error)
	UpdateCreditLimitAll(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit decimal.Decimal) (int64, error)
}
