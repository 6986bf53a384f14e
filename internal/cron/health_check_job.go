package cron

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/printz/fulfillment-backend/pkg/logger"
)

// Pinger is any dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type openBreakers interface {
	Open() []string
}

type HealthCheckJobParams struct {
	Logger   *logger.Logger
	DB       Pinger
	Redis    Pinger
	Breakers openBreakers
}

// NewHealthCheckJob probes the database and Redis. Open carrier breakers are
// logged as warnings and never fail the job.
func NewHealthCheckJob(params HealthCheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db pinger required")
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis pinger required")
	}
	return &healthCheckJob{
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		breakers: params.Breakers,
	}, nil
}

type healthCheckJob struct {
	logg     *logger.Logger
	db       Pinger
	redis    Pinger
	breakers openBreakers
}

func (j *healthCheckJob) Name() string { return "health-check" }

func (j *healthCheckJob) Run(ctx context.Context) error {
	var errs error
	if err := j.db.Ping(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("database: %w", err))
	}
	if err := j.redis.Ping(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("redis: %w", err))
	}
	if j.breakers != nil {
		if open := j.breakers.Open(); len(open) > 0 {
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"open_breakers": strings.Join(open, ","),
				"open_count":    len(open),
			})
			j.logg.Warn(logCtx, "carrier circuit breakers open")
		}
	}
	if errs != nil {
		return fmt.Errorf("health check: %w", errs)
	}
	j.logg.Info(ctx, "health check passed")
	return nil
}
