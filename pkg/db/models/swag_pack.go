package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// SwagPack is a customer-defined bundle of SKU variants shipped to each recipient.
type SwagPack struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID            `gorm:"column:owner_id;type:uuid;not null;index" json:"ownerId"`
	Name        string               `gorm:"column:name;not null" json:"name"`
	Description *string              `gorm:"column:description" json:"description,omitempty"`
	Status      enums.SwagPackStatus `gorm:"column:status;type:text;not null" json:"status"`
	Items       []SwagPackItem       `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *SwagPack) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type SwagPackItem struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PackID       uuid.UUID   `gorm:"column:pack_id;type:uuid;not null;index" json:"packId"`
	SkuVariantID uuid.UUID   `gorm:"column:sku_variant_id;type:uuid;not null" json:"skuVariantId"`
	ProductName  string      `gorm:"column:product_name;not null" json:"productName"`
	Quantity     int         `gorm:"column:quantity;not null" json:"quantity"`
	Variant      *SkuVariant `gorm:"foreignKey:SkuVariantID" json:"variant,omitempty"`
}

func (i *SwagPackItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
