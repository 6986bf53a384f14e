// Package bootstrap holds the startup and shutdown steps shared by the
// api, worker, cron-worker and outbox-publisher binaries.
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/instance"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/migrate"
	"github.com/printz/fulfillment-backend/pkg/pubsub"
	"github.com/printz/fulfillment-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

type closer struct {
	name string
	fn   func() error
}

// Process is one running binary: its config, its logger and the resources
// to release on the way out.
type Process struct {
	Kind    string
	Config  *config.Config
	Logger  *logger.Logger
	closers []closer
	exit    func(int)
}

// Start reads .env (if any) and the PRINTZ_* environment, then builds the
// process logger. A config error is fatal.
func Start(kind string) *Process {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	return newProcess(kind, cfg, logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	}))
}

func newProcess(kind string, cfg *config.Config, logg *logger.Logger) *Process {
	cfg.Service.Kind = kind
	return &Process{Kind: kind, Config: cfg, Logger: logg, exit: os.Exit}
}

// Must logs msg, releases what was opened so far and exits when err is set.
func (p *Process) Must(msg string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), msg, err)
	p.Close()
	p.exit(1)
}

// Defer registers fn to run on Close. Closers run newest first.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Context is cancelled on SIGINT or SIGTERM and carries the process
// identity fields plus extra.
func (p *Process) Context(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"instance":    instance.ID(),
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}

// Finish turns the result of a blocking Run into the process exit.
// Cancellation from a signal counts as a clean stop.
func (p *Process) Finish(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Kind+" stopped unexpectedly", err)
		p.Close()
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, p.Kind+" shutting down gracefully")
	p.Close()
}

// Database opens the configured database and applies dev migrations when
// enabled.
func (p *Process) Database() *db.Client {
	client, err := db.New(context.Background(), p.Config.DB, p.Logger)
	p.Must("failed to bootstrap database", err)
	p.Defer("database", client.Close)
	p.Must("failed to run dev migrations", migrate.MaybeRunDev(context.Background(), p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis() *redis.Client {
	client, err := redis.New(context.Background(), p.Config.Redis, p.Logger)
	p.Must("failed to bootstrap redis", err)
	p.Defer("redis", client.Close)
	return client
}

func (p *Process) PubSub() *pubsub.Client {
	client, err := pubsub.NewClient(context.Background(), p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must("failed to bootstrap pubsub", err)
	p.Defer("pubsub", client.Close)
	return client
}

// ServeMetrics exposes gatherer on PRINTZ_METRICS_ADDR until ctx ends. It
// does nothing when the address is unset.
func (p *Process) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	addr := p.Config.Service.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		p.Logger.Info(p.Logger.WithField(ctx, "addr", addr), "serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error(ctx, "metrics listener failed", err)
		}
	}()
}
