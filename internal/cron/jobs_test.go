package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/dashboard"
	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticBreakers []string

func (s staticBreakers) Open() []string { return s }

func healthy(context.Context) error { return nil }

func TestHealthCheckJob(t *testing.T) {
	cases := []struct {
		name    string
		db      pingFunc
		redis   pingFunc
		wantErr string
	}{
		{name: "all healthy", db: healthy, redis: healthy},
		{name: "database down", db: func(context.Context) error { return errors.New("dial tcp") }, redis: healthy, wantErr: "database"},
		{name: "redis down", db: healthy, redis: func(context.Context) error { return errors.New("refused") }, wantErr: "redis"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job, err := NewHealthCheckJob(HealthCheckJobParams{
				Logger:   logger.Nop(),
				DB:       tc.db,
				Redis:    tc.redis,
				Breakers: staticBreakers{"ghn"},
			})
			if err != nil {
				t.Fatalf("NewHealthCheckJob: %v", err)
			}
			err = job.Run(context.Background())
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected open breakers to stay a warning, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestHealthCheckJobReportsBothFailures(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("down") })
	job, err := NewHealthCheckJob(HealthCheckJobParams{Logger: logger.Nop(), DB: down, Redis: down})
	if err != nil {
		t.Fatalf("NewHealthCheckJob: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database") || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected combined error, got %v", err)
	}
}

type fakeLowStock struct {
	levels []inventory.Level
	err    error
	calls  []inventory.ListParams
}

func (f *fakeLowStock) LowStock(_ context.Context, params inventory.ListParams) ([]inventory.Level, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	if params.Offset >= len(f.levels) {
		return nil, nil
	}
	end := min(params.Offset+params.Limit, len(f.levels))
	return f.levels[params.Offset:end], nil
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return r.Emit(ctx, tx, event)
}

func TestLowStockJobEmitsEventPerItem(t *testing.T) {
	levels := make([]inventory.Level, 0, 120)
	for i := range 120 {
		levels = append(levels, inventory.Level{
			SkuVariantID:      uuid.New(),
			SKU:               "TEE-" + uuid.NewString()[:4],
			Available:         i % 5,
			LowStockThreshold: 5,
			ReorderPoint:      10,
		})
	}
	lister := &fakeLowStock{levels: levels}
	emitter := &recordingEmitter{}
	job, err := NewLowStockJob(LowStockJobParams{Logger: logger.Nop(), DB: &passthroughTx{}, Inventory: lister, Outbox: emitter})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lister.calls) != 2 {
		t.Fatalf("expected two pages, got %d", len(lister.calls))
	}
	if len(emitter.events) != 120 {
		t.Fatalf("expected 120 events, got %d", len(emitter.events))
	}
	first := emitter.events[0]
	if first.EventType != enums.EventInventoryLowStock || first.AggregateType != enums.AggregateInventoryItem {
		t.Fatalf("unexpected event %s/%s", first.EventType, first.AggregateType)
	}
	payload, ok := first.Data.(payloads.InventoryLowStockEvent)
	if !ok || payload.SKU != levels[0].SKU || payload.Threshold != 5 {
		t.Fatalf("unexpected payload %+v", first.Data)
	}
}

func TestLowStockJobNoItems(t *testing.T) {
	emitter := &recordingEmitter{}
	job, err := NewLowStockJob(LowStockJobParams{Logger: logger.Nop(), DB: &passthroughTx{}, Inventory: &fakeLowStock{}, Outbox: emitter})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events, got %d", len(emitter.events))
	}
}

func TestLowStockJobPropagatesListError(t *testing.T) {
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    logger.Nop(),
		DB:        &passthroughTx{},
		Inventory: &fakeLowStock{err: errors.New("boom")},
		Outbox:    &recordingEmitter{},
	})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type staticOverview struct {
	overview *dashboard.Overview
	err      error
}

func (s staticOverview) Overview(context.Context) (*dashboard.Overview, error) {
	return s.overview, s.err
}

type capturingWriter struct {
	written []*dashboard.Overview
}

func (c *capturingWriter) Write(_ context.Context, overview *dashboard.Overview) error {
	c.written = append(c.written, overview)
	return nil
}

func TestDashboardSnapshotJob(t *testing.T) {
	overview := &dashboard.Overview{
		GeneratedAt: time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC),
		Revenue:     dashboard.Revenue{Total: decimal.NewFromInt(700000)},
	}
	writer := &capturingWriter{}
	job, err := NewDashboardSnapshotJob(DashboardSnapshotJobParams{
		Logger:    logger.Nop(),
		Dashboard: staticOverview{overview: overview},
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("NewDashboardSnapshotJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(writer.written) != 1 || writer.written[0] != overview {
		t.Fatalf("expected overview to be written once")
	}

	failing, err := NewDashboardSnapshotJob(DashboardSnapshotJobParams{
		Logger:    logger.Nop(),
		Dashboard: staticOverview{err: errors.New("db down")},
		Writer:    writer,
	})
	if err != nil {
		t.Fatalf("NewDashboardSnapshotJob: %v", err)
	}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatal("expected overview error")
	}
}

func TestDashboardSnapshotJobDisabledWithoutWriter(t *testing.T) {
	job, err := NewDashboardSnapshotJob(DashboardSnapshotJobParams{Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("NewDashboardSnapshotJob: %v", err)
	}
	if job != nil {
		t.Fatal("expected nil job when BigQuery is not configured")
	}
	registry := NewRegistry(job)
	if len(registry.Jobs()) != 0 {
		t.Fatal("expected nil job to be skipped")
	}
}
