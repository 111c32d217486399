package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Client{}, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	client := domain.Client{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		County:         strings.TrimSpace(req.County),
		SiteID:         req.SiteID,
		CurrentBalance: decimal.Zero,
		CreditLimit:    decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}

	return client, nil
}

func (s *Service) GetBalance(ctx context.Context, clientID snowflake.ID) (decimal.Decimal, error) {
	client, err := s.find(ctx, clientID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return client.CurrentBalance, nil
}

func (s *Service) SetBalance(ctx context.Context, clientID snowflake.ID, balance decimal.Decimal) (domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Client{}, domain.ErrInvalidOrganization
	}
	if err := validateAmount(balance); err != nil {
		return domain.Client{}, err
	}

	rows, err := s.repo.UpdateBalance(ctx, s.db, orgID, clientID, balance)
	if err != nil {
		return domain.Client{}, err
	}
	if rows == 0 {
		return domain.Client{}, domain.ErrNotFound
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if client == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *client, nil
}

func (s *Service) SetCreditLimit(ctx context.Context, clientID snowflake.ID, limit decimal.Decimal) (domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Client{}, domain.ErrInvalidOrganization
	}
	if err := validateAmount(limit); err != nil {
		return domain.Client{}, err
	}

	rows, err := s.repo.UpdateCreditLimit(ctx, s.db, orgID, clientID, limit)
	if err != nil {
		return domain.Client{}, err
	}
	if rows == 0 {
		return domain.Client{}, domain.ErrNotFound
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if client == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *client, nil
}

func (s *Service) SetGlobalCreditLimit(ctx context.Context, limit decimal.Decimal) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	if err := validateAmount(limit); err != nil {
		return 0, err
	}

	rows, err := s.repo.UpdateCreditLimitAll(ctx, s.db, orgID, limit)
	if err != nil {
		return 0, err
	}

	s.log.Info("applied global credit limit",
		zap.String("org_id", orgID.String()),
		zap.String("limit", limit.String()),
		zap.Int64("clients_updated", rows),
	)
	return rows, nil
}

func (s *Service) find(ctx context.Context, clientID snowflake.ID) (*domain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if clientID == 0 {
		return nil, domain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrNotFound
	}
	return client, nil
}

// validateAmount enforces fixed-point money with at most two decimals.
func validateAmount(amount decimal.Decimal) error {
	if amount.Exponent() < -2 {
		return domain.ErrInvalidAmount
	}
	return nil
}
