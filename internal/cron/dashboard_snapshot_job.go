package cron

import (
	"context"
	"fmt"

	"github.com/printz/fulfillment-backend/internal/dashboard"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

type overviewSource interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
}

type snapshotWriter interface {
	Write(ctx context.Context, overview *dashboard.Overview) error
}

type DashboardSnapshotJobParams struct {
	Logger    *logger.Logger
	Dashboard overviewSource
	Writer    snapshotWriter
}

// NewDashboardSnapshotJob returns nil when no writer is configured so the
// registry skips it.
func NewDashboardSnapshotJob(params DashboardSnapshotJobParams) (Job, error) {
	if params.Writer == nil {
		return nil, nil
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Dashboard == nil {
		return nil, fmt.Errorf("dashboard service required")
	}
	return &dashboardSnapshotJob{logg: params.Logger, dashboard: params.Dashboard, writer: params.Writer}, nil
}

type dashboardSnapshotJob struct {
	logg      *logger.Logger
	dashboard overviewSource
	writer    snapshotWriter
}

func (j *dashboardSnapshotJob) Name() string { return "dashboard-snapshot" }

func (j *dashboardSnapshotJob) Run(ctx context.Context) error {
	overview, err := j.dashboard.Overview(ctx)
	if err != nil {
		return fmt.Errorf("build overview: %w", err)
	}
	if err := j.writer.Write(ctx, overview); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "revenue_total", overview.Revenue.Total.String()), "dashboard snapshot exported")
	return nil
}
