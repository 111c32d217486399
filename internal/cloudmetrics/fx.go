package cloudmetrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/poolfund/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 30 * time.Minute

var registerOnce sync.Once

// Register enables cloud usage reporting for hosted installs. Failures
// are logged and never block pool accounting.
func Register(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger, db *gorm.DB) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.IsCloud() || !cfg.Cloud.Metrics.Enabled {
		return
	}

	pusher := NewPusher(cfg, logger)
	if pusher == nil {
		return
	}

	registerOnce.Do(func() {
		// Cloud counters live on their own registry so the local
		// /metrics endpoint stays free of reporting series.
		registry := prometheus.NewRegistry()
		rec := &recorder{
			metrics:      newMetrics(registry),
			defaultOrgID: cfg.Cloud.OrganizationID,
		}
		setRecorder(rec)

		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				logger.Info("starting cloud metrics reporter")
				go run(ctx, rec, pusher, registry, db, logger)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	})
}

func run(ctx context.Context, rec *recorder, pusher Pusher, registry *prometheus.Registry, db *gorm.DB, logger *zap.Logger) {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	report := func() {
		updateSystemMetrics(rec)
		updateOrganizationCount(ctx, rec, db)
		if err := pusher.Push(ctx, registry); err != nil {
			logger.Warn("cloud metrics push failed", zap.Error(err))
		}
	}

	report()
	for {
		select {
		case <-ticker.C:
			report()
		case <-ctx.Done():
			logger.Info("stopping cloud metrics reporter")
			return
		}
	}
}

func updateSystemMetrics(rec *recorder) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	rec.SetMemoryUsage(m.Sys)
}

func updateOrganizationCount(ctx context.Context, rec *recorder, db *gorm.DB) {
	if db == nil {
		return
	}
	var count int64
	if err := db.WithContext(ctx).Table("organizations").Count(&count).Error; err != nil {
		return
	}
	rec.SetOrganizationsTotal(count)
}

var Module = fx.Module("cloud.metrics",
	fx.Invoke(Register),
)
