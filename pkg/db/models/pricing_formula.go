package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/types"
)

// PricingFormula is the tier rule used to quote one product type.
type PricingFormula struct {
	ID               uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductType      string                         `gorm:"column:product_type;not null;index" json:"productType"`
	Name             string                         `gorm:"column:name;not null" json:"name"`
	Formula          string                         `gorm:"column:formula;not null" json:"formula"`
	QuantityTiers    types.JSON[[]QuantityTier]     `gorm:"column:quantity_tiers;type:jsonb" json:"quantityTiers"`
	PaperMultipliers types.JSON[map[string]float64] `gorm:"column:paper_multipliers;type:jsonb" json:"paperMultipliers"`
	FinishingCosts   types.JSON[map[string]float64] `gorm:"column:finishing_costs;type:jsonb" json:"finishingCosts"`
	MinMargin        float64                        `gorm:"column:min_margin;not null" json:"minMargin"`
	IsActive         bool                           `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt        time.Time                      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time                      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (f *PricingFormula) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// QuantityTier prices units for quantities in [MinQuantity, MaxQuantity].
type QuantityTier struct {
	MinQuantity  int     `json:"minQuantity" validate:"gte=1"`
	MaxQuantity  int     `json:"maxQuantity" validate:"gtefield=MinQuantity"`
	PricePerUnit float64 `json:"pricePerUnit" validate:"gt=0"`
	Discount     float64 `json:"discount" validate:"gte=0,lte=100"`
}
