package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/types"
)

// PrintOrder is a custom print job paid through PayOS.
type PrintOrder struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber      string                 `gorm:"column:order_number;not null;uniqueIndex" json:"orderNumber"`
	CustomerID       uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	Status           enums.PrintOrderStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null" json:"paymentStatus"`
	PaymentOrderCode int64                  `gorm:"column:payment_order_code;not null;uniqueIndex" json:"paymentOrderCode"`
	Subtotal         decimal.Decimal        `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	ShippingFee      decimal.Decimal        `gorm:"column:shipping_fee;type:numeric(14,2);not null" json:"shippingFee"`
	Total            decimal.Decimal        `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	Notes            *string                `gorm:"column:notes" json:"notes,omitempty"`
	PaidAt           *time.Time             `gorm:"column:paid_at" json:"paidAt,omitempty"`
	Items            []PrintOrderItem       `gorm:"foreignKey:PrintOrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (o *PrintOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

type PrintOrderItem struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PrintOrderID  uuid.UUID                  `gorm:"column:print_order_id;type:uuid;not null;index" json:"printOrderId"`
	ProductType   string                     `gorm:"column:product_type;not null" json:"productType"`
	Description   string                     `gorm:"column:description;not null" json:"description"`
	Quantity      int                        `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice     decimal.Decimal            `gorm:"column:unit_price;type:numeric(14,2);not null" json:"unitPrice"`
	LineTotal     decimal.Decimal            `gorm:"column:line_total;type:numeric(14,2);not null" json:"lineTotal"`
	Specification types.JSON[map[string]any] `gorm:"column:specification;type:jsonb" json:"specification"`
}

func (i *PrintOrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
