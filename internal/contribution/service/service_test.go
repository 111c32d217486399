package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	clientrepository "github.com/smallbiznis/poolfund/internal/client/repository"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/config"
	"github.com/smallbiznis/poolfund/internal/contribution/domain"
	"github.com/smallbiznis/poolfund/internal/contribution/repository"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type contributionFixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	repo     domain.Repository
	orgID    snowflake.ID
	clientID snowflake.ID
}

func newContributionFixture(t *testing.T) *contributionFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.MonthlyContributionRecord{},
		&domain.ContributionTotal{},
		&clientdomain.Client{},
	))
	// Matching unique indexes so ON CONFLICT and duplicate detection
	// behave the way the postgres migrations define them.
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_monthly_contributions_org_client_month ON monthly_contributions(org_id, client_id, month)",
	).Error)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	orgID := node.Generate()

	client := clientdomain.Client{
		ID:             node.Generate(),
		OrgID:          orgID,
		County:         "Lake",
		CurrentBalance: decimal.Zero,
		CreditLimit:    decimal.Zero,
		CreatedAt:      fake.Now(),
		UpdatedAt:      fake.Now(),
	}
	require.NoError(t, db.Create(&client).Error)

	svc := New(Params{
		DB:         db,
		Log:        zaptest.NewLogger(t),
		GenID:      node,
		Clock:      fake,
		Repo:       repo,
		ClientRepo: clientrepository.Provide(),
		PoolCfg:    config.NewStaticPoolConfigHolder(config.DefaultPoolConfig()),
	}).(*Service)

	return &contributionFixture{
		svc:      svc,
		db:       db,
		node:     node,
		clock:    fake,
		repo:     repo,
		orgID:    orgID,
		clientID: client.ID,
	}
}

func (f *contributionFixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateRecordDerivesMonthPoolTotal(t *testing.T) {
	f := newContributionFixture(t)

	record, err := f.svc.CreateRecord(f.ctx(), domain.CreateRecordRequest{
		ClientID:         f.clientID,
		Month:            "2024-05",
		RentAmount:       amount("1100.00"),
		SubsidyAward:     amount("1220.00"),
		SubsidyReceived:  amount("1220.00"),
		ClientObligation: amount("330.00"),
		ClientPaid:       amount("330.00"),
		AdminFee:         amount("61.00"),
		Notes:            "  first month  ",
	})
	require.NoError(t, err)

	// 1220 + 330 - 1100 - 61 = 389
	assert.True(t, record.MonthPoolTotal.Equal(amount("389.00")), "got %s", record.MonthPoolTotal)
	assert.True(t, record.RunningPoolTotal.Equal(amount("389.00")), "got %s", record.RunningPoolTotal)
	assert.Equal(t, "first month", record.Notes)
	assert.Equal(t, f.clock.Now(), record.CreatedAt)

	total, err := f.repo.FindTotal(f.ctx(), f.db, f.orgID)
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.True(t, total.RunningTotal.Equal(amount("389.00")))
	assert.EqualValues(t, 1, total.Version)
}

func TestCreateRecordAdvancesRunningTotal(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	months := []struct {
		month    string
		request  domain.CreateRecordRequest
		expected string
	}{
		{
			month: "2024-05",
			request: domain.CreateRecordRequest{
				ClientID:         f.clientID,
				Month:            "2024-05",
				RentAmount:       amount("1100.00"),
				SubsidyReceived:  amount("1220.00"),
				ClientObligation: amount("330.00"),
				AdminFee:         amount("61.00"),
			},
			expected: "389.00",
		},
		{
			// 1000 + 50 - 1100 = -50, pulling the running total down.
			month: "2024-06",
			request: domain.CreateRecordRequest{
				ClientID:         f.clientID,
				Month:            "2024-06",
				RentAmount:       amount("1100.00"),
				SubsidyReceived:  amount("1000.00"),
				ClientObligation: amount("50.00"),
			},
			expected: "339.00",
		},
		{
			// 1200 + 20 - 1100 = 120.
			month: "2024-07",
			request: domain.CreateRecordRequest{
				ClientID:         f.clientID,
				Month:            "2024-07",
				RentAmount:       amount("1100.00"),
				SubsidyReceived:  amount("1200.00"),
				ClientObligation: amount("20.00"),
			},
			expected: "459.00",
		},
	}

	for _, m := range months {
		f.clock.Advance(24 * time.Hour)
		record, err := f.svc.CreateRecord(ctx, m.request)
		require.NoError(t, err, m.month)
		assert.True(t, record.RunningPoolTotal.Equal(amount(m.expected)),
			"%s: got %s", m.month, record.RunningPoolTotal)
	}

	june, err := f.svc.MonthlyTotal(ctx, scope.Tenant(f.orgID), "2024-06")
	require.NoError(t, err)
	assert.True(t, june.Equal(amount("-50.00")), "got %s", june)

	running, err := f.svc.RunningTotal(ctx, scope.Tenant(f.orgID))
	require.NoError(t, err)
	assert.True(t, running.Equal(amount("459.00")), "got %s", running)
}

func TestCreateRecordDuplicateMonth(t *testing.T) {
	f := newContributionFixture(t)
	req := domain.CreateRecordRequest{
		ClientID:        f.clientID,
		Month:           "2024-05",
		RentAmount:      amount("900.00"),
		SubsidyReceived: amount("950.00"),
	}

	_, err := f.svc.CreateRecord(f.ctx(), req)
	require.NoError(t, err)

	_, err = f.svc.CreateRecord(f.ctx(), req)
	assert.ErrorIs(t, err, domain.ErrMonthAlreadyRecorded)

	// The losing insert must not advance the running total.
	total, err := f.repo.FindTotal(f.ctx(), f.db, f.orgID)
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.True(t, total.RunningTotal.Equal(amount("50.00")), "got %s", total.RunningTotal)
	assert.EqualValues(t, 1, total.Version)
}

func TestCreateRecordValidation(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	_, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{ClientID: f.clientID, Month: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = f.svc.CreateRecord(ctx, domain.CreateRecordRequest{ClientID: f.clientID, Month: "May 2024"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)

	_, err = f.svc.CreateRecord(ctx, domain.CreateRecordRequest{Month: "2024-05"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID: f.clientID, Month: "2024-05", RentAmount: amount("-1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID: f.clientID, Month: "2024-05", AdminFee: amount("1.005"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateRecord(context.Background(), domain.CreateRecordRequest{
		ClientID: f.clientID, Month: "2024-05",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestCreateRecordRejectsForeignClient(t *testing.T) {
	f := newContributionFixture(t)

	otherOrg := f.node.Generate()
	foreign := clientdomain.Client{
		ID:             f.node.Generate(),
		OrgID:          otherOrg,
		CurrentBalance: decimal.Zero,
		CreditLimit:    decimal.Zero,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	_, err := f.svc.CreateRecord(f.ctx(), domain.CreateRecordRequest{
		ClientID: foreign.ID, Month: "2024-05",
	})
	assert.ErrorIs(t, err, domain.ErrScopeViolation)

	_, err = f.svc.CreateRecord(f.ctx(), domain.CreateRecordRequest{
		ClientID: f.node.Generate(), Month: "2024-05",
	})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestUpdateRecordRecomputesMonthTotalOnly(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	first, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID:         f.clientID,
		Month:            "2024-05",
		RentAmount:       amount("1100.00"),
		SubsidyReceived:  amount("1220.00"),
		ClientObligation: amount("330.00"),
		AdminFee:         amount("61.00"),
	})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	second, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID:        f.clientID,
		Month:           "2024-06",
		RentAmount:      amount("1100.00"),
		SubsidyReceived: amount("1200.00"),
	})
	require.NoError(t, err)
	require.True(t, second.RunningPoolTotal.Equal(amount("489.00")))

	// Lowering May's rent raises May's month total by 100.
	f.clock.Advance(time.Hour)
	newRent := amount("1000.00")
	updated, err := f.svc.UpdateRecord(ctx, first.ID, domain.UpdateRecordRequest{
		RentAmount: &newRent,
	})
	require.NoError(t, err)
	assert.True(t, updated.MonthPoolTotal.Equal(amount("489.00")), "got %s", updated.MonthPoolTotal)
	assert.Equal(t, f.clock.Now(), updated.UpdatedAt)

	// June's stored snapshot stays as written.
	stored, err := f.svc.GetRecord(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, stored.RunningPoolTotal.Equal(amount("489.00")))

	// The recomputed running total picks up the edit.
	running, err := f.svc.RunningTotal(ctx, scope.Tenant(f.orgID))
	require.NoError(t, err)
	assert.True(t, running.Equal(amount("589.00")), "got %s", running)
}

func TestUpdateRecordNotesOnlyKeepsTotals(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	record, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID:        f.clientID,
		Month:           "2024-05",
		RentAmount:      amount("1000.00"),
		SubsidyReceived: amount("1050.00"),
	})
	require.NoError(t, err)

	notes := " corrected paperwork "
	updated, err := f.svc.UpdateRecord(ctx, record.ID, domain.UpdateRecordRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "corrected paperwork", updated.Notes)
	assert.True(t, updated.MonthPoolTotal.Equal(record.MonthPoolTotal))
}

func TestUpdateRecordErrors(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	_, err := f.svc.UpdateRecord(ctx, f.node.Generate(), domain.UpdateRecordRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	record, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
		ClientID:        f.clientID,
		Month:           "2024-05",
		SubsidyReceived: amount("100.00"),
	})
	require.NoError(t, err)

	bad := amount("-5")
	_, err = f.svc.UpdateRecord(ctx, record.ID, domain.UpdateRecordRequest{RentAmount: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestListRecords(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	for _, month := range []string{"2024-05", "2024-06"} {
		f.clock.Advance(time.Hour)
		_, err := f.svc.CreateRecord(ctx, domain.CreateRecordRequest{
			ClientID:        f.clientID,
			Month:           month,
			SubsidyReceived: amount("100.00"),
		})
		require.NoError(t, err)
	}

	all, err := f.svc.ListRecords(ctx, scope.Tenant(f.orgID), domain.ListRecordsRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-05", all[0].Month)
	assert.Equal(t, "2024-06", all[1].Month)

	june, err := f.svc.ListRecords(ctx, scope.Tenant(f.orgID), domain.ListRecordsRequest{Month: "2024-06"})
	require.NoError(t, err)
	require.Len(t, june, 1)

	_, err = f.svc.ListRecords(ctx, scope.Tenant(f.orgID), domain.ListRecordsRequest{Month: "junk"})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
}

func TestRunningTotalVersionCheck(t *testing.T) {
	f := newContributionFixture(t)
	ctx := f.ctx()

	seeded, err := f.repo.InsertTotal(ctx, f.db, &domain.ContributionTotal{
		OrgID:        f.orgID,
		RunningTotal: amount("100.00"),
		Version:      0,
		UpdatedAt:    f.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, seeded)

	// Seeding again is a no-op.
	again, err := f.repo.InsertTotal(ctx, f.db, &domain.ContributionTotal{
		OrgID:        f.orgID,
		RunningTotal: amount("999.00"),
		Version:      0,
		UpdatedAt:    f.clock.Now(),
	})
	require.NoError(t, err)
	assert.False(t, again)

	rows, err := f.repo.CompareAndSetTotal(ctx, f.db, f.orgID, amount("150.00"), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	// A writer holding the old version loses.
	rows, err = f.repo.CompareAndSetTotal(ctx, f.db, f.orgID, amount("175.00"), 0)
	require.NoError(t, err)
	assert.Zero(t, rows)

	total, err := f.repo.FindTotal(ctx, f.db, f.orgID)
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.True(t, total.RunningTotal.Equal(amount("150.00")))
	assert.EqualValues(t, 1, total.Version)
}
