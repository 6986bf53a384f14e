package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// SwagOrderCreatedEvent is emitted once a swag order and its recipients are persisted.
type SwagOrderCreatedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	TotalRecipients int             `json:"total_recipients"`
	Total           decimal.Decimal `json:"total"`
}

// SwagOrderPaidEvent is emitted when PayOS confirms payment for a swag order.
type SwagOrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber      string          `json:"order_number" validate:"required"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	PaymentOrderCode int64           `json:"payment_order_code"`
	Amount           decimal.Decimal `json:"amount"`
	PaidAt           time.Time       `json:"paid_at"`
}

type SwagOrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// SwagOrderKittedEvent marks every pack of an order as assembled and ready to ship.
type SwagOrderKittedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	Recipients  int        `json:"recipients"`
	KittedBy    *uuid.UUID `json:"kitted_by,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

type ShipmentStatusChangedEvent struct {
	RecipientID    uuid.UUID            `json:"recipient_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	Carrier        string               `json:"carrier"`
	TrackingNumber string               `json:"tracking_number"`
	Status         enums.ShipmentStatus `json:"status"`
	PreviousStatus enums.ShipmentStatus `json:"previous_status,omitempty"`
	Source         string               `json:"source"`
}

type PrintOrderPaidEvent struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber string          `json:"order_number" validate:"required"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      time.Time       `json:"paid_at"`
}

// InventoryLowStockEvent fires when available stock drops to the alert threshold.
type InventoryLowStockEvent struct {
	SkuVariantID uuid.UUID `json:"sku_variant_id"`
	SKU          string    `json:"sku"`
	Available    int       `json:"available"`
	Threshold    int       `json:"threshold"`
	ReorderPoint int       `json:"reorder_point"`
}

type InvoiceIssuedEvent struct {
	InvoiceID     uuid.UUID               `json:"invoice_id"`
	InvoiceNumber string                  `json:"invoice_number"`
	SourceType    enums.InvoiceSourceType `json:"source_type"`
	SourceID      uuid.UUID               `json:"source_id"`
	CustomerID    uuid.UUID               `json:"customer_id"`
	Total         decimal.Decimal         `json:"total"`
}
