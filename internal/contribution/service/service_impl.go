package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/cloudmetrics"
	"github.com/smallbiznis/poolfund/internal/config"
	"github.com/smallbiznis/poolfund/internal/contribution/domain"
	"github.com/smallbiznis/poolfund/internal/lock"
	obsmetrics "github.com/smallbiznis/poolfund/internal/observability/metrics"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ClientRepo clientdomain.Repository
	PoolCfg    *config.PoolConfigHolder
	Locker     *lock.Locker        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	clientRepo clientdomain.Repository
	poolCfg    *config.PoolConfigHolder
	locker     *lock.Locker
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("contribution.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		poolCfg:    p.PoolCfg,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateRecord(ctx context.Context, req domain.CreateRecordRequest) (domain.MonthlyContributionRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidOrganization
	}
	if req.ClientID == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidID
	}
	if err := domain.ValidateMonth(req.Month); err != nil {
		return domain.MonthlyContributionRecord{}, err
	}
	for _, amount := range []decimal.Decimal{
		req.RentAmount, req.SubsidyAward, req.SubsidyReceived, req.ClientObligation,
		req.ClientPaid, req.ElectricityFee, req.AdminFee, req.RentLateFee,
	} {
		if err := domain.ValidateAmount(amount); err != nil {
			return domain.MonthlyContributionRecord{}, err
		}
	}
	if err := s.checkClientScope(ctx, orgID, req.ClientID, "contribution.create"); err != nil {
		return domain.MonthlyContributionRecord{}, err
	}

	// The redis lease only reduces conflict churn between processes;
	// the version check below is what keeps the total correct.
	if s.locker != nil {
		key := lock.ContributionKey(orgID)
		ttl := s.poolCfg.Get().ContributionLockTTL()
		token, acquired, err := s.locker.TryLock(ctx, key, ttl)
		if err != nil {
			s.log.Warn("contribution lock unavailable, relying on version check", zap.Error(err))
		} else if !acquired {
			s.obsMetrics.RecordConcurrencyConflict(ctx, "contribution.lock")
			return domain.MonthlyContributionRecord{}, domain.ErrConcurrencyConflict
		} else {
			defer func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("contribution lock release failed", zap.Error(err))
				}
			}()
		}
	}

	monthTotal := domain.MonthPoolTotal(
		req.SubsidyReceived, req.ClientObligation,
		req.RentAmount, req.AdminFee, req.ElectricityFee, req.RentLateFee,
	)

	now := s.clock.Now()
	record := domain.MonthlyContributionRecord{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		ClientID:         req.ClientID,
		Month:            req.Month,
		RentAmount:       req.RentAmount,
		SubsidyAward:     req.SubsidyAward,
		SubsidyReceived:  req.SubsidyReceived,
		ClientObligation: req.ClientObligation,
		ClientPaid:       req.ClientPaid,
		ElectricityFee:   req.ElectricityFee,
		AdminFee:         req.AdminFee,
		RentLateFee:      req.RentLateFee,
		MonthPoolTotal:   monthTotal,
		Notes:            strings.TrimSpace(req.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, err := s.repo.FindTotal(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if total == nil {
			seed := &domain.ContributionTotal{
				OrgID:        orgID,
				RunningTotal: decimal.Zero,
				Version:      0,
				UpdatedAt:    now,
			}
			if _, err := s.repo.InsertTotal(ctx, tx, seed); err != nil {
				return err
			}
			total, err = s.repo.FindTotal(ctx, tx, orgID)
			if err != nil {
				return err
			}
			if total == nil {
				return domain.ErrConcurrencyConflict
			}
		}

		record.RunningPoolTotal = total.RunningTotal.Add(monthTotal)

		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrMonthAlreadyRecorded
			}
			return err
		}

		rows, err := s.repo.CompareAndSetTotal(ctx, tx, orgID, record.RunningPoolTotal, total.Version)
		if err != nil {
			if db.IsSerializationErr(err) {
				return domain.ErrConcurrencyConflict
			}
			return err
		}
		if rows == 0 {
			return domain.ErrConcurrencyConflict
		}
		return nil
	})
	if err != nil {
		if err == domain.ErrConcurrencyConflict {
			s.obsMetrics.RecordConcurrencyConflict(ctx, "contribution.create")
			s.log.Warn("running total version check lost a race",
				zap.String("org_id", orgID.String()),
				zap.String("month", req.Month),
			)
		}
		return domain.MonthlyContributionRecord{}, err
	}

	s.obsMetrics.RecordContributionRecord(ctx, record.Month)
	cloudmetrics.RecordContribution(orgID.String())
	return record, nil
}

func (s *Service) UpdateRecord(ctx context.Context, id snowflake.ID, req domain.UpdateRecordRequest) (domain.MonthlyContributionRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidOrganization
	}
	if id == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.MonthlyContributionRecord{}, err
	}
	if record == nil {
		return domain.MonthlyContributionRecord{}, domain.ErrNotFound
	}

	financialChanged := false
	merge := func(dst *decimal.Decimal, src *decimal.Decimal) error {
		if src == nil {
			return nil
		}
		if err := domain.ValidateAmount(*src); err != nil {
			return err
		}
		*dst = *src
		financialChanged = true
		return nil
	}
	for _, field := range []struct {
		dst *decimal.Decimal
		src *decimal.Decimal
	}{
		{&record.RentAmount, req.RentAmount},
		{&record.SubsidyAward, req.SubsidyAward},
		{&record.SubsidyReceived, req.SubsidyReceived},
		{&record.ClientObligation, req.ClientObligation},
		{&record.ClientPaid, req.ClientPaid},
		{&record.ElectricityFee, req.ElectricityFee},
		{&record.AdminFee, req.AdminFee},
		{&record.RentLateFee, req.RentLateFee},
	} {
		if err := merge(field.dst, field.src); err != nil {
			return domain.MonthlyContributionRecord{}, err
		}
	}
	if req.Notes != nil {
		record.Notes = strings.TrimSpace(*req.Notes)
	}

	if financialChanged {
		record.MonthPoolTotal = domain.MonthPoolTotal(
			record.SubsidyReceived, record.ClientObligation,
			record.RentAmount, record.AdminFee, record.ElectricityFee, record.RentLateFee,
		)
	}
	record.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return domain.MonthlyContributionRecord{}, err
	}
	return *record, nil
}

func (s *Service) GetRecord(ctx context.Context, id snowflake.ID) (domain.MonthlyContributionRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidOrganization
	}
	if id == 0 {
		return domain.MonthlyContributionRecord{}, domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.MonthlyContributionRecord{}, err
	}
	if record == nil {
		return domain.MonthlyContributionRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) ListRecords(ctx context.Context, sc scope.Scope, req domain.ListRecordsRequest) ([]domain.MonthlyContributionRecord, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if req.Month != "" {
		if err := domain.ValidateMonth(req.Month); err != nil {
			return nil, err
		}
	}

	rows, err := s.repo.List(ctx, s.db, sc, req)
	if err != nil {
		return nil, err
	}
	records := make([]domain.MonthlyContributionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *row)
	}
	return records, nil
}

func (s *Service) MonthlyTotal(ctx context.Context, sc scope.Scope, month string) (decimal.Decimal, error) {
	if err := sc.Validate(); err != nil {
		return decimal.Decimal{}, err
	}
	if err := domain.ValidateMonth(month); err != nil {
		return decimal.Decimal{}, err
	}
	return s.repo.SumMonthPoolTotal(ctx, s.db, sc, month)
}

func (s *Service) RunningTotal(ctx context.Context, sc scope.Scope) (decimal.Decimal, error) {
	if err := sc.Validate(); err != nil {
		return decimal.Decimal{}, err
	}
	return s.repo.SumMonthPoolTotal(ctx, s.db, sc, "")
}

func (s *Service) checkClientScope(ctx context.Context, orgID, clientID snowflake.ID, operation string) error {
	client, err := s.clientRepo.FindAnyByID(ctx, s.db, clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return domain.ErrClientNotFound
	}
	if client.OrgID != orgID {
		s.obsMetrics.RecordScopeViolation(ctx, operation)
		s.log.Warn("rejected cross-tenant client reference",
			zap.String("org_id", orgID.String()),
			zap.String("client_id", clientID.String()),
		)
		return domain.ErrScopeViolation
	}
	return nil
}
