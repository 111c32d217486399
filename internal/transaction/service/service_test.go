package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/internal/transaction/domain"
	"github.com/smallbiznis/poolfund/internal/transaction/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTransactionService(t *testing.T) (*Service, *snowflake.Node, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Transaction{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)

	return svc, node, node.Generate()
}

func TestCreateTransaction(t *testing.T) {
	svc, node, orgID := newTransactionService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	appID := node.Generate()
	transaction, err := svc.Create(ctx, domain.CreateTransactionRequest{
		Kind:          " Rent ",
		Amount:        decimal.RequireFromString("850.00"),
		Description:   "  march rent  ",
		Month:         "2024-03",
		ApplicationID: &appID,
		PaymentMeta:   datatypes.JSONMap{"check_number": "1042"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindRent, transaction.Kind)
	assert.Equal(t, orgID, transaction.OrgID)
	assert.Equal(t, "march rent", transaction.Description)
	require.NotNil(t, transaction.ApplicationID)
	assert.Equal(t, appID, *transaction.ApplicationID)

	_, err = svc.Create(ctx, domain.CreateTransactionRequest{
		Kind: "refund", Amount: decimal.RequireFromString("10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = svc.Create(ctx, domain.CreateTransactionRequest{
		Kind: domain.TransactionKindRent, Amount: decimal.RequireFromString("-10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), domain.CreateTransactionRequest{
		Kind: domain.TransactionKindRent, Amount: decimal.RequireFromString("10"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestListTransactions(t *testing.T) {
	svc, node, orgID := newTransactionService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	clientID := node.Generate()
	_, err := svc.Create(ctx, domain.CreateTransactionRequest{
		Kind:     domain.TransactionKindRent,
		Amount:   decimal.RequireFromString("850.00"),
		ClientID: &clientID,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateTransactionRequest{
		Kind:   domain.TransactionKindApplicationFee,
		Amount: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	_, err = svc.Create(otherCtx, domain.CreateTransactionRequest{
		Kind:   domain.TransactionKindRent,
		Amount: decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)

	mine, err := svc.List(ctx, scope.Tenant(orgID), domain.ListTransactionsRequest{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	rents, err := svc.List(ctx, scope.Tenant(orgID), domain.ListTransactionsRequest{
		Kind: domain.TransactionKindRent,
	})
	require.NoError(t, err)
	require.Len(t, rents, 1)
	assert.True(t, rents[0].Amount.Equal(decimal.RequireFromString("850.00")))

	byClient, err := svc.List(ctx, scope.Tenant(orgID), domain.ListTransactionsRequest{
		ClientID: &clientID,
	})
	require.NoError(t, err)
	assert.Len(t, byClient, 1)

	all, err := svc.List(ctx, scope.SystemWide(), domain.ListTransactionsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
