package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pool_clients (id, org_id, county, site_id, current_balance, credit_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.County,
		client.SiteID,
		client.CurrentBalance,
		client.CreditLimit,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, county, site_id, current_balance, credit_limit, created_at, updated_at
		 FROM pool_clients WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) FindAnyByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, county, site_id, current_balance, credit_limit, created_at, updated_at
		 FROM pool_clients WHERE id = ?`,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, balance decimal.Decimal) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE pool_clients SET current_balance = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		balance,
		time.Now().UTC(),
		orgID,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateCreditLimit(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, limit decimal.Decimal) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE pool_clients SET credit_limit = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		limit,
		time.Now().UTC(),
		orgID,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateCreditLimitAll(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit decimal.Decimal) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE pool_clients SET credit_limit = ?, updated_at = ? WHERE org_id = ?`,
		limit,
		time.Now().UTC(),
		orgID,
	)
	return result.RowsAffected, result.Error
}
