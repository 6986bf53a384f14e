package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/types"
)

// Product is a catalog entry; sellable units live on its SKU variants.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string              `gorm:"column:name;not null" json:"name"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Description *string             `gorm:"column:description" json:"description,omitempty"`
	Category    string              `gorm:"column:category;not null;default:''" json:"category"`
	SupplierID  *uuid.UUID          `gorm:"column:supplier_id;type:uuid" json:"supplierId,omitempty"`
	BasePrice   decimal.Decimal     `gorm:"column:base_price;type:numeric(14,2);not null;default:0" json:"basePrice"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:draft" json:"status"`
	Variants    []SkuVariant        `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt      `gorm:"column:deleted_at;index" json:"deletedAt,omitempty"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// SkuVariant is a scannable, stockable unit of a product.
type SkuVariant struct {
	ID          uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID   uuid.UUID                     `gorm:"column:product_id;type:uuid;not null;index" json:"productId"`
	SKU         string                        `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Name        string                        `gorm:"column:name;not null" json:"name"`
	Attributes  types.JSON[map[string]string] `gorm:"column:attributes;type:jsonb" json:"attributes"`
	Price       decimal.Decimal               `gorm:"column:price;type:numeric(14,2);not null;default:0" json:"price"`
	Cost        decimal.Decimal               `gorm:"column:cost;type:numeric(14,2);not null;default:0" json:"cost"`
	WeightGrams int                           `gorm:"column:weight_grams;not null;default:0" json:"weightGrams"`
	IsActive    bool                          `gorm:"column:is_active;not null" json:"isActive"`
	Inventory   *InventoryItem                `gorm:"foreignKey:SkuVariantID" json:"inventory,omitempty"`
	CreatedAt   time.Time                     `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                     `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (v *SkuVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
