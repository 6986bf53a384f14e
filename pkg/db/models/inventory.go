package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// InventoryItem holds stock counts per SKU variant. OnHand and Reserved are
// never negative and Reserved never exceeds OnHand.
type InventoryItem struct {
	SkuVariantID      uuid.UUID       `gorm:"column:sku_variant_id;type:uuid;primaryKey" json:"skuVariantId"`
	OnHand            int             `gorm:"column:on_hand;not null;default:0" json:"onHand"`
	Reserved          int             `gorm:"column:reserved;not null;default:0" json:"reserved"`
	ReorderPoint      int             `gorm:"column:reorder_point;not null;default:10" json:"reorderPoint"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:5" json:"lowStockThreshold"`
	UnitCost          decimal.Decimal `gorm:"column:unit_cost;type:numeric(14,2);not null;default:0" json:"unitCost"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// Available is the stock not yet promised to an order.
func (i InventoryItem) Available() int {
	return i.OnHand - i.Reserved
}

// IsLowStock reports whether available stock is at or under the alert threshold.
func (i InventoryItem) IsLowStock() bool {
	return i.Available() <= i.LowStockThreshold
}

// InventoryTransaction is an append-only ledger row for one stock movement.
type InventoryTransaction struct {
	ID              uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SkuVariantID    uuid.UUID                      `gorm:"column:sku_variant_id;type:uuid;not null;index" json:"skuVariantId"`
	SKU             string                         `gorm:"column:sku;not null" json:"sku"`
	Type            enums.InventoryTransactionType `gorm:"column:type;type:text;not null" json:"type"`
	QuantityBefore  int                            `gorm:"column:quantity_before;not null" json:"quantityBefore"`
	QuantityChange  int                            `gorm:"column:quantity_change;not null" json:"quantityChange"`
	QuantityAfter   int                            `gorm:"column:quantity_after;not null" json:"quantityAfter"`
	ReferenceType   *string                        `gorm:"column:reference_type" json:"referenceType,omitempty"`
	ReferenceID     *uuid.UUID                     `gorm:"column:reference_id;type:uuid" json:"referenceId,omitempty"`
	ReferenceNumber *string                        `gorm:"column:reference_number" json:"referenceNumber,omitempty"`
	UnitCost        decimal.Decimal                `gorm:"column:unit_cost;type:numeric(14,2);not null;default:0" json:"unitCost"`
	TotalCost       decimal.Decimal                `gorm:"column:total_cost;type:numeric(14,2);not null;default:0" json:"totalCost"`
	Reason          string                         `gorm:"column:reason;not null" json:"reason"`
	Notes           *string                        `gorm:"column:notes" json:"notes,omitempty"`
	PerformedBy     *uuid.UUID                     `gorm:"column:performed_by;type:uuid" json:"performedBy,omitempty"`
	CreatedAt       time.Time                      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
