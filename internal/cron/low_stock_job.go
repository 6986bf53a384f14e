package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

type lowStockLister interface {
	LowStock(ctx context.Context, params inventory.ListParams) ([]inventory.Level, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Inventory lowStockLister
	Outbox    outbox.Emitter
}

// NewLowStockJob emits one inventory_low_stock event per variant whose
// available stock is at or under its threshold.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory lowStockLister
	outbox    outbox.Emitter
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	var levels []inventory.Level
	for offset := 0; ; offset += pagination.MaxLimit {
		page, err := j.inventory.LowStock(ctx, inventory.ListParams{Limit: pagination.MaxLimit, Offset: offset})
		if err != nil {
			return fmt.Errorf("list low stock: %w", err)
		}
		levels = append(levels, page...)
		if len(page) < pagination.MaxLimit {
			break
		}
	}
	if len(levels) == 0 {
		j.logg.Info(ctx, "no low stock items")
		return nil
	}

	now := j.now().UTC()
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, level := range levels {
			event := outbox.DomainEvent{
				EventType:     enums.EventInventoryLowStock,
				AggregateType: enums.AggregateInventoryItem,
				AggregateID:   level.SkuVariantID,
				OccurredAt:    now,
				Data: payloads.InventoryLowStockEvent{
					SkuVariantID: level.SkuVariantID,
					SKU:          level.SKU,
					Available:    level.Available,
					Threshold:    level.LowStockThreshold,
					ReorderPoint: level.ReorderPoint,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				return fmt.Errorf("emit low stock %s: %w", level.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.logg.Warn(j.logg.WithField(ctx, "low_stock_count", len(levels)), "low stock items found")
	return nil
}
