package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printz/fulfillment-backend/api/controllers"
	kittingcontrollers "github.com/printz/fulfillment-backend/api/controllers/kitting"
	ordercontrollers "github.com/printz/fulfillment-backend/api/controllers/orders"
	shippingcontrollers "github.com/printz/fulfillment-backend/api/controllers/shipping"
	swagcontrollers "github.com/printz/fulfillment-backend/api/controllers/swagorders"
	webhookcontrollers "github.com/printz/fulfillment-backend/api/controllers/webhooks"
	"github.com/printz/fulfillment-backend/api/middleware"
	"github.com/printz/fulfillment-backend/internal/address"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/auth"
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
	internalwebhooks "github.com/printz/fulfillment-backend/internal/webhooks"
	"github.com/printz/fulfillment-backend/pkg/auth/session"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/metrics"
	"github.com/printz/fulfillment-backend/pkg/redis"
)

// Deps carries everything the HTTP surface is wired to.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer

	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Users         users.Service
	Products      products.Service
	Suppliers     suppliers.Service
	Inventory     inventory.Service
	SwagPacks     swagpacks.Service
	SwagOrders    swagorders.Service
	Kitting       kitting.Service
	Shipping      shipping.Service
	Pricing       pricing.Service
	Orders        orders.Service
	Invoices      invoices.Service
	Dashboard     dashboard.Service
	AuditLogs     auditlog.Service
	Address       address.Service
	Breakers      controllers.BreakerControl
	DeadLetters   controllers.DeadLetterQueue

	Webhooks           webhookcontrollers.Consumer
	CarrierWebhookAuth map[string]internalwebhooks.Authenticator
	PayOSWebhookAuth   internalwebhooks.Authenticator
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	passthrough := func(next http.Handler) http.Handler { return next }
	idempotency := passthrough
	signinLimit, signupLimit := passthrough, passthrough
	if d.Redis != nil {
		idempotency = middleware.Idempotency(d.Redis, cfg.App.IdempotencyInFlightTTL, logg)
		signinLimit = middleware.AuthRateLimit(middleware.RateLimitRule{
			Name:     "signin",
			Window:   cfg.AuthRateLimit.LoginWindow,
			PerIP:    cfg.AuthRateLimit.LoginIPLimit,
			PerEmail: cfg.AuthRateLimit.LoginEmailLimit,
		}, d.Redis, logg)
		signupLimit = middleware.AuthRateLimit(middleware.RateLimitRule{
			Name:     "signup",
			Window:   cfg.AuthRateLimit.RegisterWindow,
			PerIP:    cfg.AuthRateLimit.RegisterIPLimit,
			PerEmail: cfg.AuthRateLimit.RegisterEmailLimit,
		}, d.Redis, logg)
	}
	authenticated := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Pingers, logg))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/webhooks", func(r chi.Router) {
		r.With(webhookcontrollers.Authenticate(webhookcontrollers.ByParam("carrier", d.CarrierWebhookAuth), logg)).
			Post("/carriers/{carrier}", webhookcontrollers.Carrier(d.Webhooks, logg))
		r.With(webhookcontrollers.Authenticate(webhookcontrollers.Static(d.PayOSWebhookAuth), logg)).
			Post("/payos", webhookcontrollers.PayOS(d.Webhooks, logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(signupLimit).Post("/signup", controllers.AuthSignup(d.Register, logg))
		r.Post("/verify-email", controllers.AuthVerifyEmail(d.Register, logg))
		r.With(signinLimit).Post("/signin", controllers.AuthSignin(d.Auth, cfg, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, cfg, logg))
		r.Post("/signout", controllers.AuthSignout(d.Auth, cfg, logg))
	})

	r.Get("/api/products", controllers.ListActiveProducts(d.Products, logg))

	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(idempotency)

		r.Get("/api/me", controllers.Me(d.Users, logg))
		r.Get("/api/address/suggest", controllers.AddressSuggest(d.Address, logg))
		r.Post("/api/address/resolve", controllers.AddressResolve(d.Address, logg))

		r.Route("/api/swag-packs", func(r chi.Router) {
			r.Get("/", controllers.ListSwagPacks(d.SwagPacks, logg))
			r.Post("/", controllers.CreateSwagPack(d.SwagPacks, logg))
			r.Get("/{id}", controllers.GetSwagPack(d.SwagPacks, logg))
			r.Put("/{id}", controllers.UpdateSwagPack(d.SwagPacks, logg))
			r.Delete("/{id}", controllers.DeleteSwagPack(d.SwagPacks, logg))
		})

		r.Route("/api/swag-orders", func(r chi.Router) {
			r.Get("/", swagcontrollers.List(d.SwagOrders, logg))
			r.Post("/", swagcontrollers.Create(d.SwagOrders, logg))
			r.Get("/{id}", swagcontrollers.Detail(d.SwagOrders, logg))
			r.Post("/{id}/recipients", swagcontrollers.AddRecipients(d.SwagOrders, logg))
			r.Put("/{id}/recipients/{recipientId}", swagcontrollers.UpdateRecipient(d.SwagOrders, logg))
			r.Delete("/{id}/recipients/{recipientId}", swagcontrollers.RemoveRecipient(d.SwagOrders, logg))
			r.Post("/{id}/cancel", swagcontrollers.Cancel(d.SwagOrders, logg))
			r.Post("/{id}/payment-link", swagcontrollers.PaymentLink(d.SwagOrders, logg))
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Post("/", ordercontrollers.Create(d.Orders, logg))
			r.Get("/{id}", ordercontrollers.Detail(d.Orders, logg))
			r.Post("/{id}/payment-link", ordercontrollers.PaymentLink(d.Orders, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleStaff))
		r.Use(idempotency)

		r.Get("/dashboard/overview", controllers.AdminDashboardOverview(d.Dashboard, logg))
		r.Get("/users", controllers.AdminListUsers(d.Users, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(d.Products, logg))
			r.Post("/", controllers.AdminCreateProduct(d.Products, logg))
			r.Get("/{id}", controllers.AdminGetProduct(d.Products, logg))
			r.Put("/{id}", controllers.AdminUpdateProduct(d.Products, logg))
			r.Delete("/{id}", controllers.AdminDeleteProduct(d.Products, logg))
			r.Patch("/{id}/status", controllers.AdminUpdateProductStatus(d.Products, logg))
			r.Get("/{id}/variants", controllers.AdminListVariants(d.Products, logg))
			r.Post("/{id}/variants", controllers.AdminCreateVariant(d.Products, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.AdminListSuppliers(d.Suppliers, logg))
			r.Post("/", controllers.AdminCreateSupplier(d.Suppliers, logg))
			r.Get("/{id}", controllers.AdminGetSupplier(d.Suppliers, logg))
			r.Put("/{id}", controllers.AdminUpdateSupplier(d.Suppliers, logg))
			r.Delete("/{id}", controllers.AdminDeleteSupplier(d.Suppliers, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.AdminInventoryOverview(d.Inventory, logg))
			r.Get("/low-stock", controllers.AdminLowStock(d.Inventory, logg))
			r.Get("/{variantId}", controllers.AdminGetInventory(d.Inventory, logg))
			r.Get("/{variantId}/transactions", controllers.AdminInventoryTransactions(d.Inventory, logg))
			r.Post("/{variantId}/adjust", controllers.AdminAdjustInventory(d.Inventory, logg))
			r.Post("/{variantId}/purchase", controllers.AdminPurchaseInventory(d.Inventory, logg))
		})

		r.Route("/swag-orders", func(r chi.Router) {
			r.Get("/", swagcontrollers.AdminList(d.SwagOrders, logg))
			r.Get("/{id}", swagcontrollers.AdminDetail(d.SwagOrders, logg))
			r.Patch("/{id}/production", swagcontrollers.UpdateProduction(d.SwagOrders, logg))
			r.Post("/{id}/cancel", swagcontrollers.Cancel(d.SwagOrders, logg))
		})

		r.Route("/kitting", func(r chi.Router) {
			r.Get("/queue", kittingcontrollers.Queue(d.Kitting, logg))
			r.Get("/{orderId}/checklist", kittingcontrollers.Checklist(d.Kitting, logg))
			r.Post("/{orderId}/start", kittingcontrollers.Start(d.Kitting, logg))
			r.Post("/{orderId}/scan", kittingcontrollers.Scan(d.Kitting, logg))
			r.Get("/{orderId}/validate", kittingcontrollers.Validate(d.Kitting, logg))
			r.Post("/{orderId}/complete", kittingcontrollers.Complete(d.Kitting, logg))
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Get("/carriers", shippingcontrollers.Carriers(d.Shipping, logg))
			r.Post("/{orderId}/bulk", shippingcontrollers.BulkCreate(d.Shipping, logg))
			r.Post("/{orderId}/recipients/{recipientId}", shippingcontrollers.CreateShipment(d.Shipping, logg))
			r.Get("/{orderId}/recipients/{recipientId}/tracking", shippingcontrollers.Track(d.Shipping, logg))
			r.Post("/{orderId}/recipients/{recipientId}/cancel", shippingcontrollers.Cancel(d.Shipping, logg))
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/formulas", controllers.AdminListFormulas(d.Pricing, logg))
			r.Post("/formulas", controllers.AdminCreateFormula(d.Pricing, logg))
			r.Get("/formulas/{id}", controllers.AdminGetFormula(d.Pricing, logg))
			r.Put("/formulas/{id}", controllers.AdminUpdateFormula(d.Pricing, logg))
			r.Delete("/formulas/{id}", controllers.AdminDeleteFormula(d.Pricing, logg))
			r.Post("/calculate", controllers.AdminCalculatePrice(d.Pricing, logg))
			r.Get("/tiers/{productType}", controllers.AdminPricingTiers(d.Pricing, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
			r.Get("/{id}", ordercontrollers.AdminDetail(d.Orders, logg))
			r.Patch("/{id}/status", ordercontrollers.AdminUpdateStatus(d.Orders, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.AdminListInvoices(d.Invoices, logg))
			r.Get("/{id}", controllers.AdminGetInvoice(d.Invoices, logg))
		})

		r.Get("/circuit-breakers", controllers.AdminListBreakers(d.Breakers, logg))
		r.Get("/circuit-breakers/{name}", controllers.AdminGetBreaker(d.Breakers, logg))
		r.Get("/outbox/dead-letters", controllers.AdminListDeadLetters(d.DeadLetters, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Post("/auth/register", controllers.AdminAuthRegister(d.AdminRegister, logg))
			r.Patch("/users/{id}/status", controllers.AdminSetUserStatus(d.Users, logg))
			r.Post("/invoices/{id}/void", controllers.AdminVoidInvoice(d.Invoices, logg))
			r.Post("/circuit-breakers/{name}/reset", controllers.AdminResetBreaker(d.Breakers, d.AuditLogs, logg))
			r.Get("/audit-logs", controllers.AdminListAuditLogs(d.AuditLogs, logg))
			r.Post("/outbox/dead-letters/{id}/replay", controllers.AdminReplayDeadLetter(d.DeadLetters, d.AuditLogs, logg))
		})
	})

	return r
}
