package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/approval/domain"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	clientrepository "github.com/smallbiznis/poolfund/internal/client/repository"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/config"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/poolfund/internal/ledger/repository"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
	transactionrepository "github.com/smallbiznis/poolfund/internal/transaction/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type approvalFixture struct {
	svc             *Service
	db              *gorm.DB
	node            *snowflake.Node
	clock           *clock.FakeClock
	orgID           snowflake.ID
	transactionRepo transactiondomain.Repository
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&transactiondomain.Transaction{},
		&ledgerdomain.LedgerEntry{},
		&clientdomain.Client{},
	))
	// SQLite needs the matching unique index for ON CONFLICT DO NOTHING.
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_pool_transactions_idempotency ON pool_transactions(org_id, application_id, kind, amount)",
	).Error)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	transactionRepo := transactionrepository.Provide()

	cfg := config.DefaultPoolConfig()
	cfg.DefaultCounty = "Statewide"

	svc := New(Params{
		DB:              db,
		Log:             zaptest.NewLogger(t),
		GenID:           node,
		Clock:           fake,
		TransactionRepo: transactionRepo,
		LedgerRepo:      ledgerrepository.Provide(),
		ClientRepo:      clientrepository.Provide(),
		PoolCfg:         config.NewStaticPoolConfigHolder(cfg),
	}).(*Service)

	return &approvalFixture{
		svc:             svc,
		db:              db,
		node:            node,
		clock:           fake,
		orgID:           node.Generate(),
		transactionRepo: transactionRepo,
	}
}

func (f *approvalFixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func (f *approvalFixture) seedClient(t *testing.T, orgID snowflake.ID, county string) snowflake.ID {
	t.Helper()
	client := clientdomain.Client{
		ID:             f.node.Generate(),
		OrgID:          orgID,
		County:         county,
		CurrentBalance: decimal.Zero,
		CreditLimit:    decimal.Zero,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&client).Error)
	return client.ID
}

func (f *approvalFixture) ledgerEntries(t *testing.T) []ledgerdomain.LedgerEntry {
	t.Helper()
	var entries []ledgerdomain.LedgerEntry
	require.NoError(t, f.db.Order("created_at asc").Find(&entries).Error)
	return entries
}

func TestCascadeDepositsSurplus(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "Lake")

	result, err := f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            clientID,
		RentPaid:            decimal.RequireFromString("700.00"),
		DepositPaid:         decimal.RequireFromString("300.00"),
		ApplicationFee:      decimal.RequireFromString("25.00"),
		CountyReimbursement: decimal.RequireFromString("1200.00"),
	})
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.True(t, result.Surplus.Equal(decimal.RequireFromString("200.00")), "got %s", result.Surplus)
	require.NotNil(t, result.Transaction)
	require.NotNil(t, result.DepositEntry)

	entries := f.ledgerEntries(t)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, ledgerdomain.EntryKindDeposit, entry.Kind)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, "Lake", entry.County)
	assert.Equal(t, f.orgID, entry.OrgID)
	// The pool deposit belongs to the fund, not the client.
	assert.Nil(t, entry.ClientID)
	require.NotNil(t, entry.TransactionID)
	assert.Equal(t, result.Transaction.ID, *entry.TransactionID)
}

func TestCascadeNoSurplusSkipsDeposit(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "Lake")

	result, err := f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            clientID,
		RentPaid:            decimal.RequireFromString("800.00"),
		DepositPaid:         decimal.RequireFromString("400.00"),
		CountyReimbursement: decimal.RequireFromString("1000.00"),
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.Surplus.Equal(decimal.RequireFromString("-200.00")), "got %s", result.Surplus)
	assert.Nil(t, result.DepositEntry)
	assert.Empty(t, f.ledgerEntries(t))

	// The reimbursement transaction itself is still recorded.
	var count int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCascadeNoopOnUnchangedReimbursement(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "Lake")
	previous := decimal.RequireFromString("1200.00")

	result, err := f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:         f.node.Generate(),
		ClientID:              clientID,
		RentPaid:              decimal.RequireFromString("700.00"),
		CountyReimbursement:   decimal.RequireFromString("1200.00"),
		PreviousReimbursement: &previous,
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.True(t, result.Surplus.IsZero())

	var count int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCascadeDuplicateDeliveryIgnored(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "Lake")
	event := domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            clientID,
		RentPaid:            decimal.RequireFromString("700.00"),
		DepositPaid:         decimal.RequireFromString("300.00"),
		CountyReimbursement: decimal.RequireFromString("1200.00"),
	}

	first, err := f.svc.OnApplicationApproved(f.ctx(), event)
	require.NoError(t, err)
	require.True(t, first.Applied)

	f.clock.Advance(time.Minute)
	second, err := f.svc.OnApplicationApproved(f.ctx(), event)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Nil(t, second.DepositEntry)

	// One transaction, one deposit, no doubling.
	var count int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, f.ledgerEntries(t), 1)
}

func TestCascadeFallsBackToDefaultCounty(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "  ")

	result, err := f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            clientID,
		RentPaid:            decimal.RequireFromString("500.00"),
		CountyReimbursement: decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.DepositEntry)
	assert.Equal(t, "Statewide", result.DepositEntry.County)
}

func TestCascadeRejectsForeignClient(t *testing.T) {
	f := newApprovalFixture(t)
	otherOrg := f.node.Generate()
	foreign := f.seedClient(t, otherOrg, "Polk")

	_, err := f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            foreign,
		CountyReimbursement: decimal.RequireFromString("600.00"),
	})
	assert.ErrorIs(t, err, domain.ErrScopeViolation)

	_, err = f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            f.node.Generate(),
		CountyReimbursement: decimal.RequireFromString("600.00"),
	})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)

	var count int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCascadeValidation(t *testing.T) {
	f := newApprovalFixture(t)
	clientID := f.seedClient(t, f.orgID, "Lake")

	_, err := f.svc.OnApplicationApproved(context.Background(), domain.ApprovalEvent{
		ApplicationID: f.node.Generate(),
		ClientID:      clientID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{ClientID: clientID})
	assert.ErrorIs(t, err, domain.ErrInvalidApplication)

	_, err = f.svc.OnApplicationApproved(f.ctx(), domain.ApprovalEvent{
		ApplicationID:       f.node.Generate(),
		ClientID:            clientID,
		CountyReimbursement: decimal.RequireFromString("-1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestFindAndRepairPartialCascades(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := f.ctx()
	appID := f.node.Generate()
	clientID := f.seedClient(t, f.orgID, "Polk")

	// A reimbursement whose deposit never landed, as left behind by an
	// interrupted import.
	orphan := &transactiondomain.Transaction{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		ApplicationID: &appID,
		ClientID:      &clientID,
		Kind:          transactiondomain.TransactionKindCountyReimbursement,
		Amount:        decimal.RequireFromString("900.00"),
		PaymentMeta: datatypes.JSONMap{
			"rent_paid":    "750.00",
			"deposit_paid": "0",
			"surplus":      "150.00",
			"county":       "Polk",
		},
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.transactionRepo.Insert(ctx, f.db, orphan))

	// A reimbursement with no surplus due; its missing entry is fine.
	noSurplusApp := f.node.Generate()
	require.NoError(t, f.transactionRepo.Insert(ctx, f.db, &transactiondomain.Transaction{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		ApplicationID: &noSurplusApp,
		Kind:          transactiondomain.TransactionKindCountyReimbursement,
		Amount:        decimal.RequireFromString("500.00"),
		PaymentMeta:   datatypes.JSONMap{"surplus": "-20.00", "county": "Polk"},
		CreatedAt:     f.clock.Now(),
	}))

	partials, err := f.svc.FindPartialCascades(ctx, scope.Tenant(f.orgID))
	require.NoError(t, err)
	require.Len(t, partials, 1)
	assert.Equal(t, orphan.ID, partials[0].TransactionID)
	assert.True(t, partials[0].ExpectedDeposit.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, "Polk", partials[0].County)

	result, err := f.svc.RepairPartialCascade(ctx, orphan.ID)
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.NotNil(t, result.DepositEntry)
	assert.True(t, result.DepositEntry.Amount.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, "Polk", result.DepositEntry.County)

	partials, err = f.svc.FindPartialCascades(ctx, scope.Tenant(f.orgID))
	require.NoError(t, err)
	assert.Empty(t, partials)

	// Repairing again reports the cascade already complete.
	_, err = f.svc.RepairPartialCascade(ctx, orphan.ID)
	assert.ErrorIs(t, err, domain.ErrCascadeComplete)

	_, err = f.svc.RepairPartialCascade(ctx, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
