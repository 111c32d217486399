package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/poolfund/internal/approval"
	approvaldomain "github.com/smallbiznis/poolfund/internal/approval/domain"
	"github.com/smallbiznis/poolfund/internal/client"
	clientdomain "github.com/smallbiznis/poolfund/internal/client/domain"
	"github.com/smallbiznis/poolfund/internal/cloudmetrics"
	"github.com/smallbiznis/poolfund/internal/config"
	"github.com/smallbiznis/poolfund/internal/contribution"
	contributiondomain "github.com/smallbiznis/poolfund/internal/contribution/domain"
	"github.com/smallbiznis/poolfund/internal/ledger"
	ledgerdomain "github.com/smallbiznis/poolfund/internal/ledger/domain"
	"github.com/smallbiznis/poolfund/internal/lock"
	"github.com/smallbiznis/poolfund/internal/observability"
	obsmiddleware "github.com/smallbiznis/poolfund/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/poolfund/internal/observability/metrics"
	obstracing "github.com/smallbiznis/poolfund/internal/observability/tracing"
	"github.com/smallbiznis/poolfund/internal/transaction"
	transactiondomain "github.com/smallbiznis/poolfund/internal/transaction/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	cloudmetrics.Module,
	lock.Module,
	fx.Provide(registerGin),
	client.Module,
	ledger.Module,
	transaction.Module,
	approval.Module,
	contribution.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	ledgerSvc       ledgerdomain.Service
	transactionSvc  transactiondomain.Service
	approvalSvc     approvaldomain.Service
	contributionSvc contributiondomain.Service
	clientSvc       clientdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	LedgerSvc       ledgerdomain.Service
	TransactionSvc  transactiondomain.Service
	ApprovalSvc     approvaldomain.Service
	ContributionSvc contributiondomain.Service
	ClientSvc       clientdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		ledgerSvc:       p.LedgerSvc,
		transactionSvc:  p.TransactionSvc,
		approvalSvc:     p.ApprovalSvc,
		contributionSvc: p.ContributionSvc,
		clientSvc:       p.ClientSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", OrgContext())

	// -------- Ledger --------
	v1.POST("/ledger/entries", s.AppendLedgerEntry)
	v1.GET("/ledger/entries", s.ListLedgerEntries)
	v1.GET("/ledger/balance", s.GetBalance)
	v1.GET("/ledger/balance/:county", s.GetCountyBalance)
	v1.GET("/ledger/summary", s.GetCountySummary)
	v1.POST("/ledger/transactions", s.CreateTransaction)
	v1.GET("/ledger/transactions", s.ListTransactions)
	v1.GET("/ledger/partial-cascades", s.ListPartialCascades)
	v1.POST("/ledger/partial-cascades/:transactionId/repair", s.RepairPartialCascade)

	// -------- Approvals --------
	v1.POST("/applications/:id/approval", s.HandleApplicationApproval)

	// -------- Contributions --------
	v1.POST("/contributions", s.CreateContribution)
	v1.PATCH("/contributions/:id", s.UpdateContribution)
	v1.GET("/contributions", s.ListContributions)
	v1.GET("/contributions/:id", s.GetContribution)
	v1.GET("/contributions/monthly-total", s.GetMonthlyTotal)
	v1.GET("/contributions/running-total", s.GetRunningTotal)

	// -------- Clients --------
	v1.POST("/clients", s.CreateClient)
	v1.GET("/clients/:id/balance", s.GetClientBalance)
	v1.PUT("/clients/:id/balance", s.SetClientBalance)
	v1.PUT("/clients/:id/credit-limit", s.SetClientCreditLimit)
	v1.PUT("/clients/credit-limit", s.SetGlobalCreditLimit)
}
