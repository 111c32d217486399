package domain

import (
	"context"

	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is deliberately append-only: no update or delete exists,
// and none may be added.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	ListPage(ctx context.Context, db *gorm.DB, sc scope.Scope, filter EntryFilter, page pagination.Pagination) ([]*LedgerEntry, error)
	// ListAll returns every entry visible to the scope, in insertion
	// order. Balance folds recompute from this full set on every call.
	ListAll(ctx context.Context, db *gorm.DB, sc scope.Scope, filter EntryFilter) ([]*LedgerEntry, error)
}
