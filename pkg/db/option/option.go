package option

import (
	"strconv"
	"time"

	"github.com/smallbiznis/poolfund/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type queryOptionFunc func(stmt *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

// ApplyPagination applies cursor pagination. One extra row is fetched
// past the page size so callers can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if size > 250 {
			size = 250
		}

		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				if ts, err := time.Parse(time.RFC3339, cursor.CreatedAt); err == nil {
					// Bind the id as an integer so the row-value
					// comparison stays numeric on every dialect.
					var id any = cursor.ID
					if n, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
						id = n
					}
					stmt = stmt.Where("(created_at, id) < (?, ?)", ts, id)
				}
			}
		}

		return stmt.Limit(size + 1)
	})
}

// WithLimit caps result size without cursor semantics.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if limit > 0 {
			stmt = stmt.Limit(limit)
		}
		return stmt
	})
}
