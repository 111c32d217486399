package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/approval/domain"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/cloudmetrics"
	"github.com/smallbiznis/poolfund/internal/config"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/poolfund/internal/observability/metrics"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	TransactionRepo transactiondomain.Repository
	LedgerRepo      ledgerdomain.Repository
	ClientRepo      clientdomain.Repository
	PoolCfg         *config.PoolConfigHolder
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	transactionRepo transactiondomain.Repository
	ledgerRepo      ledgerdomain.Repository
	clientRepo      clientdomain.Repository
	poolCfg         *config.PoolConfigHolder
	obsMetrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("approval.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		transactionRepo: p.TransactionRepo,
		ledgerRepo:      p.LedgerRepo,
		clientRepo:      p.ClientRepo,
		poolCfg:         p.PoolCfg,
		obsMetrics:      p.ObsMetrics,
	}
}

func (s *Service) OnApplicationApproved(ctx context.Context, event domain.ApprovalEvent) (*domain.CascadeResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if event.ApplicationID == 0 || event.ClientID == 0 {
		return nil, domain.ErrInvalidApplication
	}
	for _, amount := range []decimal.Decimal{event.RentPaid, event.DepositPaid, event.ApplicationFee, event.CountyReimbursement} {
		if err := transactiondomain.ValidateAmount(amount); err != nil {
			return nil, domain.ErrInvalidAmount
		}
	}

	// Re-approval with an unchanged reimbursement moves no money.
	if event.PreviousReimbursement != nil && event.PreviousReimbursement.Equal(event.CountyReimbursement) {
		s.obsMetrics.RecordApprovalCascade(ctx, "noop")
		return &domain.CascadeResult{Applied: false, Surplus: decimal.Zero}, nil
	}

	county, err := s.resolveCounty(ctx, orgID, event.ClientID)
	if err != nil {
		return nil, err
	}

	surplus := event.CountyReimbursement.Sub(event.RentPaid.Add(event.DepositPaid))
	appID := event.ApplicationID

	result := &domain.CascadeResult{Surplus: surplus}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction := &transactiondomain.Transaction{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			ApplicationID: &appID,
			ClientID:      &event.ClientID,
			Kind:          transactiondomain.TransactionKindCountyReimbursement,
			Amount:        event.CountyReimbursement,
			Description:   fmt.Sprintf("county reimbursement for application %s", appID),
			PaymentMeta: datatypes.JSONMap{
				"rent_paid":       event.RentPaid.String(),
				"deposit_paid":    event.DepositPaid.String(),
				"application_fee": event.ApplicationFee.String(),
				"surplus":         surplus.String(),
				"county":          county,
			},
			CreatedAt: s.clock.Now(),
		}

		inserted, err := s.transactionRepo.InsertIdempotent(ctx, tx, transaction)
		if err != nil {
			return err
		}
		if !inserted {
			// Same reimbursement already recorded for this application;
			// the deposit (if any) was made by the first delivery.
			result.Applied = false
			return nil
		}
		result.Applied = true
		result.Transaction = transaction

		if !surplus.IsPositive() {
			return nil
		}

		entry := &ledgerdomain.LedgerEntry{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			TransactionID: &transaction.ID,
			Kind:          ledgerdomain.EntryKindDeposit,
			Amount:        surplus,
			Description:   fmt.Sprintf("surplus from application %s", appID),
			County:        county,
			CreatedAt:     s.clock.Now(),
		}
		if err := s.ledgerRepo.Insert(ctx, tx, entry); err != nil {
			return &domain.PartialCascadeError{TransactionID: transaction.ID, Err: err}
		}
		result.DepositEntry = entry
		return nil
	})
	if err != nil {
		var partial *domain.PartialCascadeError
		if errors.As(err, &partial) {
			s.log.Error("approval cascade rolled back at deposit step",
				zap.String("org_id", orgID.String()),
				zap.String("application_id", appID.String()),
				zap.Error(err),
			)
		}
		s.obsMetrics.RecordApprovalCascade(ctx, "error")
		return nil, err
	}

	switch {
	case !result.Applied:
		s.obsMetrics.RecordApprovalCascade(ctx, "noop")
	case result.DepositEntry != nil:
		s.obsMetrics.RecordApprovalCascade(ctx, "deposit")
		s.log.Info("surplus deposited to pool",
			zap.String("org_id", orgID.String()),
			zap.String("application_id", appID.String()),
			zap.String("county", county),
			zap.String("surplus", surplus.String()),
		)
	default:
		s.obsMetrics.RecordApprovalCascade(ctx, "no_surplus")
	}
	cloudmetrics.RecordApprovalCascade(orgID.String())
	return result, nil
}

func (s *Service) FindPartialCascades(ctx context.Context, sc scope.Scope) ([]domain.PartialCascade, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	candidates, err := s.transactionRepo.ListUnmatchedReimbursements(ctx, s.db, sc)
	if err != nil {
		return nil, err
	}

	partials := make([]domain.PartialCascade, 0)
	for _, transaction := range candidates {
		surplus, county, ok := surplusFromMeta(transaction.PaymentMeta)
		if !ok || !surplus.IsPositive() {
			// No surplus was due; the missing entry is expected.
			continue
		}
		partials = append(partials, domain.PartialCascade{
			TransactionID:   transaction.ID,
			ApplicationID:   transaction.ApplicationID,
			ExpectedDeposit: surplus,
			County:          county,
		})
	}
	return partials, nil
}

func (s *Service) RepairPartialCascade(ctx context.Context, transactionID snowflake.ID) (*domain.CascadeResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	sc := scope.Tenant(orgID)
	candidates, err := s.transactionRepo.ListUnmatchedReimbursements(ctx, s.db, sc)
	if err != nil {
		return nil, err
	}

	var target *transactiondomain.Transaction
	for _, transaction := range candidates {
		if transaction.ID == transactionID {
			target = transaction
			break
		}
	}
	if target == nil {
		transactions, err := s.transactionRepo.List(ctx, s.db, sc, transactiondomain.ListTransactionsRequest{
			Kind: transactiondomain.TransactionKindCountyReimbursement,
		})
		if err != nil {
			return nil, err
		}
		for _, transaction := range transactions {
			if transaction.ID == transactionID {
				return nil, domain.ErrCascadeComplete
			}
		}
		return nil, domain.ErrNotFound
	}

	surplus, county, ok := surplusFromMeta(target.PaymentMeta)
	if !ok {
		return nil, &domain.PartialCascadeError{
			TransactionID: target.ID,
			Err:           errors.New("transaction metadata has no usable surplus"),
		}
	}
	if !surplus.IsPositive() {
		return nil, domain.ErrCascadeComplete
	}

	entry := &ledgerdomain.LedgerEntry{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		TransactionID: &target.ID,
		Kind:          ledgerdomain.EntryKindDeposit,
		Amount:        surplus,
		Description:   fmt.Sprintf("repaired surplus deposit for transaction %s", target.ID),
		County:        county,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.ledgerRepo.Insert(ctx, s.db, entry); err != nil {
		return nil, &domain.PartialCascadeError{TransactionID: target.ID, Err: err}
	}

	s.obsMetrics.RecordApprovalCascade(ctx, "repaired")
	s.log.Info("partial cascade repaired",
		zap.String("org_id", orgID.String()),
		zap.String("transaction_id", target.ID.String()),
		zap.String("county", county),
		zap.String("surplus", surplus.String()),
	)
	return &domain.CascadeResult{Applied: true, Surplus: surplus, Transaction: target, DepositEntry: entry}, nil
}

// resolveCounty looks the client up and returns the county its surplus
// belongs to, falling back to the configured default when the client
// row has none.
func (s *Service) resolveCounty(ctx context.Context, orgID, clientID snowflake.ID) (string, error) {
	client, err := s.clientRepo.FindAnyByID(ctx, s.db, clientID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return "", domain.ErrClientNotFound
	}
	if client.OrgID != orgID {
		s.obsMetrics.RecordScopeViolation(ctx, "approval.cascade")
		s.log.Warn("approval referenced client from another organization",
			zap.String("org_id", orgID.String()),
			zap.String("client_id", clientID.String()),
		)
		return "", domain.ErrScopeViolation
	}

	county := strings.TrimSpace(client.County)
	if county == "" {
		county = s.poolCfg.Get().DefaultCounty
	}
	return county, nil
}

func surplusFromMeta(meta datatypes.JSONMap) (decimal.Decimal, string, bool) {
	raw, ok := meta["surplus"].(string)
	if !ok {
		return decimal.Zero, "", false
	}
	surplus, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "", false
	}
	county, _ := meta["county"].(string)
	if county == "" {
		county = "Unknown"
	}
	return surplus, county, true
}
