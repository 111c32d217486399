package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
)

// ApprovalEvent carries the financial facts of an application approval.
// The application workflow itself (status transitions, validation,
// rendering) lives in the administration shell; the ledger only sees
// approvals that supply a county reimbursement.
type ApprovalEvent struct {
	ApplicationID         snowflake.ID
	ClientID              snowflake.ID
	RentPaid              decimal.Decimal
	DepositPaid           decimal.Decimal
	ApplicationFee        decimal.Decimal
	CountyReimbursement   decimal.Decimal
	PreviousReimbursement *decimal.Decimal
}

// CascadeResult reports which steps of an approval cascade applied.
type CascadeResult struct {
	// Applied is false when the event was an idempotent replay.
	Applied      bool                           `json:"applied"`
	Surplus      decimal.Decimal                `json:"surplus"`
	Transaction  *transactiondomain.Transaction `json:"transaction,omitempty"`
	DepositEntry *ledgerdomain.LedgerEntry      `json:"deposit_entry,omitempty"`
}

// PartialCascade identifies a committed reimbursement transaction whose
// surplus deposit is missing from the ledger.
type PartialCascade struct {
	TransactionID   snowflake.ID    `json:"transaction_id"`
	ApplicationID   *snowflake.ID   `json:"application_id,omitempty"`
	ExpectedDeposit decimal.Decimal `json:"expected_deposit"`
	County          string          `json:"county"`
}

// PartialCascadeError reports a cascade that cannot be completed: the
// reimbursement transaction committed but the surplus deposit is
// missing and could not be reconstructed.
type PartialCascadeError struct {
	TransactionID snowflake.ID
	Err           error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("partial cascade on transaction %s: %v", e.TransactionID, e.Err)
}

func (e *PartialCascadeError) Unwrap() error { return e.Err }

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidApplication  = errors.New("invalid_application")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrClientNotFound      = errors.New("client_not_found")
	ErrScopeViolation      = errors.New("scope_violation")
	ErrNotFound            = errors.New("not_found")
	ErrCascadeComplete     = errors.New("cascade_complete")
)
