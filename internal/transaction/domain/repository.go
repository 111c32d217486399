package domain

import (
	"context"

	"github.com/smallbiznis/poolfund/internal/scope"
	"gorm.io/gorm"
)

// Repository is append-only; rows are never updated or deleted.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transaction *Transaction) error
	// InsertIdempotent inserts unless a transaction with the same
	// (org, application, kind, amount) already exists. Returns false
	// when the row was deduplicated.
	InsertIdempotent(ctx context.Context, db *gorm.DB, transaction *Transaction) (bool, error)
	List(ctx context.Context, db *gorm.DB, sc scope.Scope, filter ListTransactionsRequest) ([]*Transaction, error)
	// ListUnmatchedReimbursements returns reimbursement transactions
	// with no linked ledger entry, candidates for partial-cascade
	// diagnosis.
	ListUnmatchedReimbursements(ctx context.Context, db *gorm.DB, sc scope.Scope) ([]*Transaction, error)
}
