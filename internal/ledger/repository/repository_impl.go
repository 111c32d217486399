package repository

import (
	"context"

	"github.com/smallbiznis/poolfund/internal/ledger/domain"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/pkg/db/option"
	"github.com/smallbiznis/poolfund/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pool_ledger_entries (
			id, org_id, transaction_id, client_id, site_id, kind, amount, description, county, month, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrgID,
		entry.TransactionID,
		entry.ClientID,
		entry.SiteID,
		string(entry.Kind),
		entry.Amount,
		entry.Description,
		entry.County,
		entry.Month,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListPage(ctx context.Context, db *gorm.DB, sc scope.Scope, filter domain.EntryFilter, page pagination.Pagination) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	stmt := r.scoped(db.WithContext(ctx).Model(&domain.LedgerEntry{}), sc)
	stmt = applyFilter(stmt, filter)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB, sc scope.Scope, filter domain.EntryFilter) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	stmt := r.scoped(db.WithContext(ctx).Model(&domain.LedgerEntry{}), sc)
	stmt = applyFilter(stmt, filter)
	err := stmt.
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) scoped(stmt *gorm.DB, sc scope.Scope) *gorm.DB {
	if orgID, ok := sc.TenantID(); ok {
		return stmt.Where("org_id = ?", orgID)
	}
	return stmt
}

func applyFilter(stmt *gorm.DB, filter domain.EntryFilter) *gorm.DB {
	if filter.County != "" {
		stmt = stmt.Where("county = ?", filter.County)
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", string(filter.Kind))
	}
	return stmt
}
