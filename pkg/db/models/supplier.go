package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Supplier is a vetted manufacturer, distributor, printer or dropshipper.
type Supplier struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string             `gorm:"column:name;not null" json:"name"`
	Code            string             `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Type            enums.SupplierType `gorm:"column:type;type:text;not null" json:"type"`
	ContactName     *string            `gorm:"column:contact_name" json:"contactName,omitempty"`
	ContactEmail    *string            `gorm:"column:contact_email" json:"contactEmail,omitempty"`
	ContactPhone    *string            `gorm:"column:contact_phone" json:"contactPhone,omitempty"`
	Address         *string            `gorm:"column:address" json:"address,omitempty"`
	LeadTimeMinDays int                `gorm:"column:lead_time_min_days;not null;default:0" json:"leadTimeMinDays"`
	LeadTimeMaxDays int                `gorm:"column:lead_time_max_days;not null;default:0" json:"leadTimeMaxDays"`
	Rating          float64            `gorm:"column:rating;not null;default:0" json:"rating"`
	IsActive        bool               `gorm:"column:is_active;not null" json:"isActive"`
	IsPreferred     bool               `gorm:"column:is_preferred;not null;default:false" json:"isPreferred"`
	Notes           *string            `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt       gorm.DeletedAt     `gorm:"column:deleted_at;index" json:"deletedAt,omitempty"`
}

func (s *Supplier) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
