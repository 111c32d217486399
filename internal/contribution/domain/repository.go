package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/scope"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *MonthlyContributionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*MonthlyContributionRecord, error)
	Update(ctx context.Context, db *gorm.DB, record *MonthlyContributionRecord) error
	List(ctx context.Context, db *gorm.DB, sc scope.Scope, filter ListRecordsRequest) ([]*MonthlyContributionRecord, error)
	// SumMonthPoolTotal aggregates MonthPoolTotal in the database; an
	// empty month sums every record.
	SumMonthPoolTotal(ctx context.Context, db *gorm.DB, sc scope.Scope, month string) (decimal.Decimal, error)

	FindTotal(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*ContributionTotal, error)
	// InsertTotal seeds the aggregate row for a new organization.
	// Returns false when another writer seeded it first.
	InsertTotal(ctx context.Context, db *gorm.DB, total *ContributionTotal) (bool, error)
	// CompareAndSetTotal advances the running total only when the
	// stored version still matches. Returns the number of rows
	// updated; zero means a concurrent writer won.
	CompareAndSetTotal(ctx context.Context, db *gorm.DB, orgID snowflake.ID, newTotal decimal.Decimal, version int64) (int64, error)
}
