package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/invoices"
	"github.com/printz/fulfillment-backend/internal/orders"
	"github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/pkg/bootstrap"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/idempotency"
)

func main() {
	proc := bootstrap.Start("worker")
	cfg := proc.Config

	dbClient := proc.Database()
	redisClient := proc.Redis()
	pubsubClient := proc.PubSub()

	conn := dbClient.DB()
	audit, err := auditlog.NewService(auditlog.NewRepository(conn), proc.Logger)
	proc.Must("failed to create audit service", err)
	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:        invoices.NewRepository(conn),
		SwagOrders:  swagorders.NewRepository(conn),
		PrintOrders: orders.NewRepository(conn),
		Outbox:      outbox.NewService(outbox.NewRepository(conn), proc.Logger),
		Audit:       audit,
		TxRunner:    dbClient,
		Logger:      proc.Logger,
	})
	proc.Must("failed to create invoice service", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	proc.Must("failed to create idempotency manager", err)
	consumer, err := invoices.NewConsumer(invoiceService, pubsubClient.DomainSubscription(), manager, proc.Logger)
	proc.Must("failed to create invoice consumer", err)

	service, err := NewService(ServiceParams{
		Logger:          proc.Logger,
		DB:              dbClient,
		Redis:           redisClient,
		PubSub:          pubsubClient,
		InvoiceConsumer: consumer,
	})
	proc.Must("failed to create worker service", err)

	ctx, stop := proc.Context(nil)
	defer stop()
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)

	proc.Logger.Info(ctx, "starting worker")
	proc.Finish(ctx, service.Run(ctx))
}
