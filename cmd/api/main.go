package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/api/controllers"
	"github.com/printz/fulfillment-backend/api/routes"
	"github.com/printz/fulfillment-backend/internal/address"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/auth"
	"github.com/printz/fulfillment-backend/internal/carriers"
	"github.com/printz/fulfillment-backend/internal/circuitbreaker"
	"github.com/printz/fulfillment-backend/internal/dashboard"
	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/internal/invoices"
	"github.com/printz/fulfillment-backend/internal/kitting"
	"github.com/printz/fulfillment-backend/internal/orders"
	"github.com/printz/fulfillment-backend/internal/pricing"
	"github.com/printz/fulfillment-backend/internal/products"
	"github.com/printz/fulfillment-backend/internal/shipping"
	"github.com/printz/fulfillment-backend/internal/suppliers"
	"github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/internal/swagpacks"
	"github.com/printz/fulfillment-backend/internal/users"
	"github.com/printz/fulfillment-backend/internal/webhooks"
	"github.com/printz/fulfillment-backend/pkg/auth/session"
	"github.com/printz/fulfillment-backend/pkg/bootstrap"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/maps"
	"github.com/printz/fulfillment-backend/pkg/metrics"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/payos"
	"github.com/printz/fulfillment-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database()
	redisClient := proc.Redis()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	proc.Must("failed to create session manager", err)

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, sessionManager)
	proc.Must("failed to wire services", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.Context(map[string]any{"addr": addr})
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	proc.Finish(ctx, err)
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, sessions *session.Manager) (routes.Deps, error) {
	conn := dbClient.DB()
	reg := prometheus.DefaultRegisterer
	carrierMetrics := metrics.NewCarrierMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	audit, err := auditlog.NewService(auditlog.NewRepository(conn), logg)
	if err != nil {
		return routes.Deps{}, err
	}

	userRepo := users.NewRepository(conn)
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:        userRepo,
		SessionManager:  sessions,
		JWTConfig:       cfg.JWT,
		PasswordConfig:  cfg.Password,
		RequireVerified: cfg.FeatureFlags.RequireVerified,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
		ExposeToken:    cfg.App.IsDev(),
		Users:          userRepo,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	adminRegister, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	userService, err := users.NewService(userRepo, audit, sessions)
	if err != nil {
		return routes.Deps{}, err
	}

	productRepo := products.NewRepository(conn)
	productService, err := products.NewService(productRepo, dbClient, audit)
	if err != nil {
		return routes.Deps{}, err
	}
	supplierService, err := suppliers.NewService(suppliers.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}
	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:     inventory.NewRepository(conn),
		TxRunner: dbClient,
		Audit:    audit,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	packRepo := swagpacks.NewRepository(conn)
	packService, err := swagpacks.NewService(packRepo, productRepo, dbClient)
	if err != nil {
		return routes.Deps{}, err
	}
	pricingService, err := pricing.NewService(pricing.NewRepository(conn), logg)
	if err != nil {
		return routes.Deps{}, err
	}

	swagParams := swagorders.ServiceParams{
		Repo:      swagorders.NewRepository(conn),
		Packs:     packRepo,
		Variants:  productRepo,
		Inventory: inventoryService,
		Outbox:    emitter,
		Audit:     audit,
		TxRunner:  dbClient,
		ReturnURL: cfg.PayOS.ReturnURL,
		CancelURL: cfg.PayOS.CancelURL,
		Fees:      swagorders.FeesFromConfig(cfg.Fulfillment),
		Logger:    logg,
	}
	orderParams := orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Quoter:      pricingService,
		Outbox:      emitter,
		Audit:       audit,
		TxRunner:    dbClient,
		ReturnURL:   cfg.PayOS.ReturnURL,
		CancelURL:   cfg.PayOS.CancelURL,
		ShippingFee: decimal.NewFromInt(cfg.Fulfillment.StandardShippingFee),
		Logger:      logg,
	}
	if cfg.PayOS.Enabled() {
		payments, err := payos.NewClient(cfg.PayOS, logg)
		if err != nil {
			return routes.Deps{}, err
		}
		swagParams.Payments = payments
		orderParams.Payments = payments
	} else {
		logg.Warn(context.Background(), "payos not configured, payment links disabled")
	}
	swagService, err := swagorders.NewService(swagParams)
	if err != nil {
		return routes.Deps{}, err
	}
	orderService, err := orders.NewService(orderParams)
	if err != nil {
		return routes.Deps{}, err
	}

	kittingService, err := kitting.NewService(kitting.ServiceParams{
		Repo:     kitting.NewRepository(conn),
		Orders:   swagorders.NewRepository(conn),
		Variants: productRepo,
		Stock:    inventoryService,
		Ledger:   inventoryService,
		Outbox:   emitter,
		Audit:    audit,
		TxRunner: dbClient,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker, carrierMetrics, logg)
	catalog, err := carriers.LoadCatalog()
	if err != nil {
		return routes.Deps{}, err
	}
	carrierFactory, err := carriers.NewFactory(cfg.Carriers, catalog, breakers,
		carriers.WithMetrics(carrierMetrics),
		carriers.WithLogger(logg),
	)
	if err != nil {
		return routes.Deps{}, err
	}
	shippingService, err := shipping.NewService(shipping.ServiceParams{
		Orders:    swagorders.NewRepository(conn),
		Carriers:  carrierFactory,
		Outbox:    emitter,
		Audit:     audit,
		TxRunner:  dbClient,
		Warehouse: cfg.Warehouse,
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:        invoices.NewRepository(conn),
		SwagOrders:  swagorders.NewRepository(conn),
		PrintOrders: orders.NewRepository(conn),
		Outbox:      emitter,
		Audit:       audit,
		TxRunner:    dbClient,
		Logger:      logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	dashboardService, err := dashboard.NewService(dashboard.NewRepository(conn), time.Now)
	if err != nil {
		return routes.Deps{}, err
	}

	var places address.Places
	if cfg.Maps.Enabled() {
		client, err := maps.NewClient(cfg.Maps)
		if err != nil {
			return routes.Deps{}, err
		}
		places = client
	} else {
		logg.Warn(context.Background(), "google maps not configured, address lookup disabled")
	}

	replay, err := webhooks.NewReplayGuard(redisClient, cfg.Eventing.WebhookTTL)
	if err != nil {
		return routes.Deps{}, err
	}
	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Carriers: carrierFactory,
		Shipping: shippingService,
		Payers: []webhooks.Payer{
			webhooks.PayerFunc(func(ctx context.Context, orderCode, amount int64) error {
				_, err := swagService.MarkPaid(ctx, orderCode, amount)
				return err
			}),
			webhooks.PayerFunc(orderService.MarkPaidByOrderCode),
		},
		Replay:  replay,
		Metrics: carrierMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:              redisClient,
		Sessions:           sessions,
		Metrics:            metrics.NewHTTPMetrics(reg),
		Gatherer:           prometheus.DefaultGatherer,
		Auth:               authService,
		Register:           registerService,
		AdminRegister:      adminRegister,
		Users:              userService,
		Products:           productService,
		Suppliers:          supplierService,
		Inventory:          inventoryService,
		SwagPacks:          packService,
		SwagOrders:         swagService,
		Kitting:            kittingService,
		Shipping:           shippingService,
		Pricing:            pricingService,
		Orders:             orderService,
		Invoices:           invoiceService,
		Dashboard:          dashboardService,
		AuditLogs:          audit,
		Address:            address.NewService(places),
		Breakers:           breakers,
		DeadLetters:        outbox.NewDeadLetters(conn, logg),
		Webhooks:           webhookService,
		CarrierWebhookAuth: webhooks.CarrierAuthenticators(cfg.Carriers),
		PayOSWebhookAuth:   webhooks.PayOSAuthenticator{ChecksumKey: cfg.PayOS.ChecksumKey},
	}, nil
}
