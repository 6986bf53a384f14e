package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/cron"
	"github.com/printz/fulfillment-backend/internal/dashboard"
	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/pkg/bigquery"
	"github.com/printz/fulfillment-backend/pkg/bootstrap"
	"github.com/printz/fulfillment-backend/pkg/metrics"
	"github.com/printz/fulfillment-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg := proc.Config

	dbClient := proc.Database()
	redisClient := proc.Redis()

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), proc.Logger)
	audit, err := auditlog.NewService(auditlog.NewRepository(conn), proc.Logger)
	proc.Must("failed to create audit service", err)
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:     inventory.NewRepository(conn),
		TxRunner: dbClient,
		Audit:    audit,
		Logger:   proc.Logger,
	})
	proc.Must("failed to create inventory service", err)

	healthJob, err := cron.NewHealthCheckJob(cron.HealthCheckJobParams{
		Logger: proc.Logger,
		DB:     dbClient,
		Redis:  redisClient,
	})
	proc.Must("failed to create health check job", err)
	lowStockJob, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    proc.Logger,
		DB:        dbClient,
		Inventory: inventoryService,
		Outbox:    outboxService,
	})
	proc.Must("failed to create low stock job", err)
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     proc.Logger,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
		Retention:  cfg.Outbox.Retention,
	})
	proc.Must("failed to create outbox retention job", err)

	registry := cron.NewRegistry(healthJob, lowStockJob, retentionJob)

	if cfg.FeatureFlags.DashboardSnapshot {
		bq, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, proc.Logger)
		proc.Must("failed to bootstrap bigquery", err)
		proc.Defer("bigquery", bq.Close)
		overview, err := dashboard.NewService(dashboard.NewRepository(conn), time.Now)
		proc.Must("failed to create dashboard service", err)
		writer, err := dashboard.NewSnapshotWriter(bq, bq.SnapshotsTable(), dashboard.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaximumBackoff: 10 * time.Second,
		})
		proc.Must("failed to create snapshot writer", err)
		snapshotJob, err := cron.NewDashboardSnapshotJob(cron.DashboardSnapshotJobParams{
			Logger:    proc.Logger,
			Dashboard: overview,
			Writer:    writer,
		})
		proc.Must("failed to create dashboard snapshot job", err)
		registry.Register(snapshotJob)
	}

	registry, err = registry.Only(cfg.Cron.Jobs)
	proc.Must("failed to select cron jobs", err)

	lockTTL := cfg.Cron.LockTTL
	if lockTTL <= 0 {
		lockTTL = cron.CycleLockTTL(cfg.Cron.JobTimeout, len(registry.Jobs()))
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName), lockTTL)
	proc.Must("failed to create cron lock", err)

	location, err := time.LoadLocation(cfg.Cron.Timezone)
	if err != nil {
		proc.Logger.Warn(proc.Logger.WithField(context.Background(), "timezone", cfg.Cron.Timezone), "unknown cron timezone, using UTC")
		location = time.UTC
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     proc.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		StartAt:    cfg.Cron.StartAt,
		Location:   location,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	proc.Must("failed to create cron service", err)

	ctx, stop := proc.Context(map[string]any{"jobs": registry.Names()})
	defer stop()
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)

	if cfg.Cron.RunOnce {
		proc.Logger.Info(ctx, "running single cron cycle")
		proc.Finish(ctx, service.RunOnce(ctx))
		return
	}
	proc.Logger.Info(ctx, "starting cron worker")
	proc.Finish(ctx, service.Run(ctx))
}
