package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/contribution/domain"
	"github.com/smallbiznis/poolfund/internal/scope"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.MonthlyContributionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO monthly_contributions (
			id, org_id, client_id, month,
			rent_amount, subsidy_award, subsidy_received, client_obligation, client_paid,
			electricity_fee, admin_fee, rent_late_fee,
			month_pool_total, running_pool_total, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrgID,
		record.ClientID,
		record.Month,
		record.RentAmount,
		record.SubsidyAward,
		record.SubsidyReceived,
		record.ClientObligation,
		record.ClientPaid,
		record.ElectricityFee,
		record.AdminFee,
		record.RentLateFee,
		record.MonthPoolTotal,
		record.RunningPoolTotal,
		record.Notes,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.MonthlyContributionRecord, error) {
	var record domain.MonthlyContributionRecord
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.MonthlyContributionRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE monthly_contributions SET
			rent_amount = ?, subsidy_award = ?, subsidy_received = ?, client_obligation = ?, client_paid = ?,
			electricity_fee = ?, admin_fee = ?, rent_late_fee = ?,
			month_pool_total = ?, notes = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`,
		record.RentAmount,
		record.SubsidyAward,
		record.SubsidyReceived,
		record.ClientObligation,
		record.ClientPaid,
		record.ElectricityFee,
		record.AdminFee,
		record.RentLateFee,
		record.MonthPoolTotal,
		record.Notes,
		record.UpdatedAt,
		record.OrgID,
		record.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, sc scope.Scope, filter domain.ListRecordsRequest) ([]*domain.MonthlyContributionRecord, error) {
	var records []*domain.MonthlyContributionRecord
	stmt := db.WithContext(ctx).Model(&domain.MonthlyContributionRecord{})
	if orgID, ok := sc.TenantID(); ok {
		stmt = stmt.Where("org_id = ?", orgID)
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Month != "" {
		stmt = stmt.Where("month = ?", filter.Month)
	}
	err := stmt.
		Order("month asc, created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) SumMonthPoolTotal(ctx context.Context, db *gorm.DB, sc scope.Scope, month string) (decimal.Decimal, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.MonthlyContributionRecord{}).
		Select("COALESCE(SUM(month_pool_total), 0)")
	if orgID, ok := sc.TenantID(); ok {
		stmt = stmt.Where("org_id = ?", orgID)
	}
	if month != "" {
		stmt = stmt.Where("month = ?", month)
	}

	var total decimal.Decimal
	if err := stmt.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repo) FindTotal(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.ContributionTotal, error) {
	var total domain.ContributionTotal
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&total).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &total, nil
}

func (r *repo) InsertTotal(ctx context.Context, db *gorm.DB, total *domain.ContributionTotal) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO contribution_totals (org_id, running_total, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (org_id) DO NOTHING`,
		total.OrgID,
		total.RunningTotal,
		total.Version,
		total.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CompareAndSetTotal(ctx context.Context, db *gorm.DB, orgID snowflake.ID, newTotal decimal.Decimal, version int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contribution_totals
		SET running_total = ?, version = version + 1, updated_at = ?
		WHERE org_id = ? AND version = ?`,
		newTotal,
		time.Now().UTC(),
		orgID,
		version,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
