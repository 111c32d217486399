package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("transaction.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTransactionRequest) (domain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Transaction{}, domain.ErrInvalidOrganization
	}

	kind, err := domain.NormalizeKind(req.Kind)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return domain.Transaction{}, err
	}

	meta := req.PaymentMeta
	if meta == nil {
		meta = datatypes.JSONMap{}
	}

	transaction := domain.Transaction{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		ApplicationID: req.ApplicationID,
		ClientID:      req.ClientID,
		Kind:          kind,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		PaymentMeta:   meta,
		Month:         req.Month,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &transaction); err != nil {
		return domain.Transaction{}, err
	}
	return transaction, nil
}

func (s *Service) List(ctx context.Context, sc scope.Scope, req domain.ListTransactionsRequest) ([]domain.Transaction, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, sc, req)
	if err != nil {
		return nil, err
	}

	transactions := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		transactions = append(transactions, *item)
	}
	return transactions, nil
}
