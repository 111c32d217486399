package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/poolfund/internal/scope"
)

// Service derives pool money movements from application approvals.
type Service interface {
	// OnApplicationApproved runs the approval cascade: record the
	// county reimbursement as a pool transaction and, when the
	// reimbursement exceeds what was paid out for the application,
	// deposit the surplus into the county pool. The whole cascade
	// commits atomically; replays of an unchanged approval are no-ops.
	OnApplicationApproved(ctx context.Context, event ApprovalEvent) (*CascadeResult, error)

	// FindPartialCascades lists reimbursement transactions whose
	// recorded surplus never reached the ledger. Under normal
	// operation the list is empty; entries appear only for data
	// imported from systems without the atomicity guarantee.
	FindPartialCascades(ctx context.Context, sc scope.Scope) ([]PartialCascade, error)

	// RepairPartialCascade appends the missing surplus deposit for a
	// committed reimbursement transaction. Returns ErrCascadeComplete
	// when the deposit already exists, or a *PartialCascadeError when
	// the stored transaction metadata is unusable.
	RepairPartialCascade(ctx context.Context, transactionID snowflake.ID) (*CascadeResult, error)
}
