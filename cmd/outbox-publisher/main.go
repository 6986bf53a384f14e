package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/printz/fulfillment-backend/pkg/bootstrap"
	"github.com/printz/fulfillment-backend/pkg/metrics"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg := proc.Config

	dbClient := proc.Database()
	pubsubClient := proc.PubSub()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must("failed to build event registry", err)

	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(conn),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("failed to create outbox publisher", err)

	ctx, stop := proc.Context(map[string]any{"batchSize": cfg.Outbox.BatchSize})
	defer stop()
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)

	proc.Logger.Info(ctx, "starting outbox publisher")
	proc.Finish(ctx, service.Run(ctx))
}
