package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/cloudmetrics"
	"github.com/smallbiznis/poolfund/internal/config"
	"github.com/smallbiznis/poolfund/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/poolfund/internal/observability/metrics"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/smallbiznis/poolfund/internal/scope"
	"github.com/smallbiznis/poolfund/pkg/db/pagination"
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
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		poolCfg:    p.PoolCfg,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, req domain.AppendEntryRequest) (domain.LedgerEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidOrganization
	}

	kind, err := domain.NormalizeKind(req.Kind)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return domain.LedgerEntry{}, err
	}
	county := strings.TrimSpace(req.County)
	if county == "" {
		return domain.LedgerEntry{}, domain.ErrInvalidCounty
	}
	if err := domain.ValidateMonth(req.Month); err != nil {
		return domain.LedgerEntry{}, err
	}

	if req.ClientID != nil {
		if err := s.checkClientScope(ctx, orgID, *req.ClientID, "ledger.append"); err != nil {
			return domain.LedgerEntry{}, err
		}
	}

	entry := domain.LedgerEntry{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		TransactionID: req.TransactionID,
		ClientID:      req.ClientID,
		SiteID:        req.SiteID,
		Kind:          kind,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		County:        county,
		Month:         req.Month,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		return domain.LedgerEntry{}, err
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(kind))
	cloudmetrics.RecordLedgerEntry(orgID.String())
	return entry, nil
}

func (s *Service) List(ctx context.Context, sc scope.Scope, req domain.ListEntriesRequest) (domain.ListEntriesResponse, error) {
	if err := sc.Validate(); err != nil {
		return domain.ListEntriesResponse{}, err
	}

	filter := domain.EntryFilter{
		County:   strings.TrimSpace(req.County),
		ClientID: req.ClientID,
	}
	if req.Kind != "" {
		kind, err := domain.NormalizeKind(req.Kind)
		if err != nil {
			return domain.ListEntriesResponse{}, err
		}
		filter.Kind = kind
	}

	if orgID, ok := sc.TenantID(); ok && req.ClientID != nil {
		if err := s.checkClientScope(ctx, orgID, *req.ClientID, "ledger.list"); err != nil {
			return domain.ListEntriesResponse{}, err
		}
	}

	page := listPagination(req)
	items, err := s.repo.ListPage(ctx, s.db, sc, filter, page)
	if err != nil {
		return domain.ListEntriesResponse{}, err
	}

	pageSize := int32(page.PageSize)
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(entry *domain.LedgerEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	entries := make([]domain.LedgerEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListEntriesResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) checkClientScope(ctx context.Context, orgID snowflake.ID, clientID snowflake.ID, operation string) error {
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

func (s *Service) Balance(ctx context.Context, sc scope.Scope) (decimal.Decimal, error) {
	if err := sc.Validate(); err != nil {
		return decimal.Decimal{}, err
	}

	entries, err := s.repo.ListAll(ctx, s.db, sc, domain.EntryFilter{})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return fold(entries), nil
}

func (s *Service) BalanceByCounty(ctx context.Context, sc scope.Scope, county string) (decimal.Decimal, error) {
	if err := sc.Validate(); err != nil {
		return decimal.Decimal{}, err
	}
	county = strings.TrimSpace(county)
	if county == "" {
		return decimal.Decimal{}, domain.ErrInvalidCounty
	}

	entries, err := s.repo.ListAll(ctx, s.db, sc, domain.EntryFilter{County: county})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return fold(entries), nil
}

func (s *Service) SummaryByCounty(ctx context.Context, sc scope.Scope) ([]domain.CountySummary, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListAll(ctx, s.db, sc, domain.EntryFilter{})
	if err != nil {
		return nil, err
	}

	// Single pass, first-seen county order preserved for stable ties.
	order := make([]string, 0)
	groups := make(map[string]*domain.CountySummary)
	for _, entry := range entries {
		group, ok := groups[entry.County]
		if !ok {
			group = &domain.CountySummary{
				County:           entry.County,
				Balance:          decimal.Zero,
				TotalDeposits:    decimal.Zero,
				TotalWithdrawals: decimal.Zero,
			}
			groups[entry.County] = group
			order = append(order, entry.County)
		}
		group.EntryCount++
		if entry.Kind == domain.EntryKindDeposit {
			group.TotalDeposits = group.TotalDeposits.Add(entry.Amount)
		} else {
			group.TotalWithdrawals = group.TotalWithdrawals.Add(entry.Amount)
		}
		group.Balance = group.Balance.Add(entry.Signed())
	}

	threshold := s.poolCfg.Get().LowBalanceThreshold
	summaries := make([]domain.CountySummary, 0, len(order))
	for _, county := range order {
		group := groups[county]
		group.BelowThreshold = group.Balance.LessThan(threshold)
		summaries = append(summaries, *group)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Balance.GreaterThan(summaries[j].Balance)
	})
	return summaries, nil
}

func fold(entries []*domain.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Signed())
	}
	return total
}

func listPagination(req domain.ListEntriesRequest) pagination.Pagination {
	size := int(req.PageSize)
	if size <= 0 {
		size = 50
	}
	return pagination.Pagination{PageToken: req.PageToken, PageSize: size}
}
