package repository

import (
	"context"

	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, transaction *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pool_transactions (
			id, org_id, application_id, client_id, kind, amount, description, payment_meta, month, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transaction.ID,
		transaction.OrgID,
		transaction.ApplicationID,
		transaction.ClientID,
		string(transaction.Kind),
		transaction.Amount,
		transaction.Description,
		transaction.PaymentMeta,
		transaction.Month,
		transaction.CreatedAt,
	).Error
}

func (r *repo) InsertIdempotent(ctx context.Context, db *gorm.DB, transaction *domain.Transaction) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO pool_transactions (
			id, org_id, application_id, client_id, kind, amount, description, payment_meta, month, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, application_id, kind, amount) DO NOTHING`,
		transaction.ID,
		transaction.OrgID,
		transaction.ApplicationID,
		transaction.ClientID,
		string(transaction.Kind),
		transaction.Amount,
		transaction.Description,
		transaction.PaymentMeta,
		transaction.Month,
		transaction.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, sc scope.Scope, filter domain.ListTransactionsRequest) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	stmt := db.WithContext(ctx).Model(&domain.Transaction{})
	if orgID, ok := sc.TenantID(); ok {
		stmt = stmt.Where("org_id = ?", orgID)
	}
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", string(filter.Kind))
	}
	if filter.ApplicationID != nil {
		stmt = stmt.Where("application_id = ?", *filter.ApplicationID)
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repo) ListUnmatchedReimbursements(ctx context.Context, db *gorm.DB, sc scope.Scope) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	stmt := db.WithContext(ctx).
		Table("pool_transactions t").
		Select("t.*").
		Joins("LEFT JOIN pool_ledger_entries e ON e.transaction_id = t.id").
		Where("t.kind = ?", string(domain.TransactionKindCountyReimbursement)).
		Where("e.id IS NULL")
	if orgID, ok := sc.TenantID(); ok {
		stmt = stmt.Where("t.org_id = ?", orgID)
	}
	err := stmt.
		Order("t.created_at asc").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
