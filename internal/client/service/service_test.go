package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/client/repository"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type clientFixture struct {
	svc   *Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Client{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)

	return &clientFixture{
		svc:   svc,
		db:    db,
		node:  node,
		clock: fake,
		orgID: node.Generate(),
	}
}

func (f *clientFixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func TestCreateClient(t *testing.T) {
	f := newClientFixture(t)

	client, err := f.svc.Create(f.ctx(), domain.CreateClientRequest{County: "  Lake  "})
	require.NoError(t, err)
	assert.Equal(t, f.orgID, client.OrgID)
	assert.Equal(t, "Lake", client.County)
	assert.True(t, client.CurrentBalance.IsZero())
	assert.True(t, client.CreditLimit.IsZero())
	assert.Equal(t, f.clock.Now(), client.CreatedAt)

	_, err = f.svc.Create(context.Background(), domain.CreateClientRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestGetAndSetBalance(t *testing.T) {
	f := newClientFixture(t)
	ctx := f.ctx()

	client, err := f.svc.Create(ctx, domain.CreateClientRequest{County: "Lake"})
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	updated, err := f.svc.SetBalance(ctx, client.ID, decimal.RequireFromString("250.75"))
	require.NoError(t, err)
	assert.True(t, updated.CurrentBalance.Equal(decimal.RequireFromString("250.75")))

	balance, err = f.svc.GetBalance(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("250.75")))

	// The override is directly settable; negatives describe debt.
	updated, err = f.svc.SetBalance(ctx, client.ID, decimal.RequireFromString("-40.00"))
	require.NoError(t, err)
	assert.True(t, updated.CurrentBalance.Equal(decimal.RequireFromString("-40.00")))

	_, err = f.svc.SetBalance(ctx, client.ID, decimal.RequireFromString("1.005"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.SetBalance(ctx, f.node.Generate(), decimal.RequireFromString("10"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetBalance(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestBalanceScopedToOwningOrg(t *testing.T) {
	f := newClientFixture(t)

	client, err := f.svc.Create(f.ctx(), domain.CreateClientRequest{County: "Lake"})
	require.NoError(t, err)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	_, err = f.svc.GetBalance(otherCtx, client.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SetBalance(otherCtx, client.ID, decimal.RequireFromString("10"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetCreditLimit(t *testing.T) {
	f := newClientFixture(t)
	ctx := f.ctx()

	client, err := f.svc.Create(ctx, domain.CreateClientRequest{County: "Lake"})
	require.NoError(t, err)

	updated, err := f.svc.SetCreditLimit(ctx, client.ID, decimal.RequireFromString("500.00"))
	require.NoError(t, err)
	assert.True(t, updated.CreditLimit.Equal(decimal.RequireFromString("500.00")))

	_, err = f.svc.SetCreditLimit(ctx, f.node.Generate(), decimal.RequireFromString("500.00"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetGlobalCreditLimit(t *testing.T) {
	f := newClientFixture(t)
	ctx := f.ctx()

	one, err := f.svc.Create(ctx, domain.CreateClientRequest{County: "Lake"})
	require.NoError(t, err)
	two, err := f.svc.Create(ctx, domain.CreateClientRequest{County: "Polk"})
	require.NoError(t, err)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	other, err := f.svc.Create(otherCtx, domain.CreateClientRequest{County: "Marion"})
	require.NoError(t, err)

	rows, err := f.svc.SetGlobalCreditLimit(ctx, decimal.RequireFromString("750.00"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, rows)

	for _, id := range []snowflake.ID{one.ID, two.ID} {
		var got domain.Client
		require.NoError(t, f.db.Where("id = ?", id).First(&got).Error)
		assert.True(t, got.CreditLimit.Equal(decimal.RequireFromString("750.00")))
	}

	// The other tenant's client is untouched.
	var untouched domain.Client
	require.NoError(t, f.db.Where("id = ?", other.ID).First(&untouched).Error)
	assert.True(t, untouched.CreditLimit.IsZero())
}
