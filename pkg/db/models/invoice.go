package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Invoice bills exactly one source order; (source_type, source_id) is unique.
type Invoice struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceNumber string                  `gorm:"column:invoice_number;not null;uniqueIndex" json:"invoiceNumber"`
	SourceType    enums.InvoiceSourceType `gorm:"column:source_type;type:text;not null;uniqueIndex:idx_invoices_source" json:"sourceType"`
	SourceID      uuid.UUID               `gorm:"column:source_id;type:uuid;not null;uniqueIndex:idx_invoices_source" json:"sourceId"`
	CustomerID    uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	Subtotal      decimal.Decimal         `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	Tax           decimal.Decimal         `gorm:"column:tax;type:numeric(14,2);not null" json:"tax"`
	Total         decimal.Decimal         `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	Status        enums.InvoiceStatus     `gorm:"column:status;type:text;not null" json:"status"`
	IssuedAt      time.Time               `gorm:"column:issued_at;not null" json:"issuedAt"`
	PaidAt        *time.Time              `gorm:"column:paid_at" json:"paidAt,omitempty"`
	VoidedAt      *time.Time              `gorm:"column:voided_at" json:"voidedAt,omitempty"`
	VoidReason    *string                 `gorm:"column:void_reason" json:"voidReason,omitempty"`
	Lines         []InvoiceLine           `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

type InvoiceLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index" json:"invoiceId"`
	Description string          `gorm:"column:description;not null" json:"description"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unitPrice"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
}

func (l *InvoiceLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
