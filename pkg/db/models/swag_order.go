package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/types"
)

// SwagOrder sends one swag pack to many recipients.
type SwagOrder struct {
	ID                uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber       string                         `gorm:"column:order_number;not null;uniqueIndex" json:"orderNumber"`
	CustomerID        uuid.UUID                      `gorm:"column:customer_id;type:uuid;not null;index" json:"customerId"`
	SwagPackID        uuid.UUID                      `gorm:"column:swag_pack_id;type:uuid;not null" json:"swagPackId"`
	Name              string                         `gorm:"column:name;not null" json:"name"`
	Status            enums.SwagOrderStatus          `gorm:"column:status;type:text;not null;index" json:"status"`
	ShippingMethod    enums.ShippingMethod           `gorm:"column:shipping_method;type:text;not null" json:"shippingMethod"`
	PaymentStatus     enums.PaymentStatus            `gorm:"column:payment_status;type:text;not null" json:"paymentStatus"`
	PaymentOrderCode  *int64                         `gorm:"column:payment_order_code;uniqueIndex" json:"paymentOrderCode,omitempty"`
	InventoryReserved bool                           `gorm:"column:inventory_reserved;not null" json:"inventoryReserved"`
	TotalRecipients   int                            `gorm:"column:total_recipients;not null" json:"totalRecipients"`
	Pricing           SwagOrderPricing               `gorm:"embedded" json:"pricing"`
	Stats             SwagOrderStats                 `gorm:"embedded;embeddedPrefix:stats_" json:"stats"`
	Production        SwagOrderProduction            `gorm:"embedded;embeddedPrefix:production_" json:"production"`
	PackSnapshot      types.JSON[[]PackSnapshotItem] `gorm:"column:pack_snapshot;type:jsonb" json:"packSnapshot"`
	ScheduledSendDate *time.Time                     `gorm:"column:scheduled_send_date" json:"scheduledSendDate,omitempty"`
	PaidAt            *time.Time                     `gorm:"column:paid_at" json:"paidAt,omitempty"`
	CancelledAt       *time.Time                     `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason      *string                        `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`
	Recipients        []RecipientShipment            `gorm:"foreignKey:SwagOrderID" json:"recipients,omitempty"`
	SwagPack          *SwagPack                      `gorm:"foreignKey:SwagPackID" json:"swagPack,omitempty"`
	CreatedAt         time.Time                      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time                      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (o *SwagOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// PackSnapshotItem freezes pack contents and prices at order time.
type PackSnapshotItem struct {
	SkuVariantID uuid.UUID       `json:"skuVariantId"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
}

type SwagOrderPricing struct {
	PackPrice      decimal.Decimal `gorm:"column:pack_price;type:numeric(14,2);not null;default:0" json:"packPrice"`
	TotalPacksCost decimal.Decimal `gorm:"column:total_packs_cost;type:numeric(14,2);not null;default:0" json:"totalPacksCost"`
	ShippingCost   decimal.Decimal `gorm:"column:shipping_cost;type:numeric(14,2);not null;default:0" json:"shippingCost"`
	KittingFee     decimal.Decimal `gorm:"column:kitting_fee;type:numeric(14,2);not null;default:0" json:"kittingFee"`
	Tax            decimal.Decimal `gorm:"column:tax;type:numeric(14,2);not null;default:0" json:"tax"`
	Discount       decimal.Decimal `gorm:"column:discount;type:numeric(14,2);not null;default:0" json:"discount"`
	Total          decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null;default:0" json:"total"`
}

// SwagOrderStats counts recipients per coarse delivery bucket.
type SwagOrderStats struct {
	PendingInfo int `gorm:"column:pending_info;not null;default:0" json:"pendingInfo"`
	Processing  int `gorm:"column:processing;not null;default:0" json:"processing"`
	Shipped     int `gorm:"column:shipped;not null;default:0" json:"shipped"`
	Delivered   int `gorm:"column:delivered;not null;default:0" json:"delivered"`
	Failed      int `gorm:"column:failed;not null;default:0" json:"failed"`
}

type SwagOrderProduction struct {
	Status             enums.ProductionStatus `gorm:"column:status;type:text;not null" json:"status"`
	QCRequired         bool                   `gorm:"column:qc_required;not null" json:"qcRequired"`
	QCStatus           enums.QCStatus         `gorm:"column:qc_status;type:text;not null" json:"qcStatus"`
	KittingStatus      enums.KittingStatus    `gorm:"column:kitting_status;type:text;not null" json:"kittingStatus"`
	KittingStartedAt   *time.Time             `gorm:"column:kitting_started_at" json:"kittingStartedAt,omitempty"`
	KittingCompletedAt *time.Time             `gorm:"column:kitting_completed_at" json:"kittingCompletedAt,omitempty"`
	KittedBy           *uuid.UUID             `gorm:"column:kitted_by;type:uuid" json:"kittedBy,omitempty"`
}

// Address is the delivery address of a recipient.
type Address struct {
	Street     string `gorm:"column:street" json:"street"`
	Ward       string `gorm:"column:ward" json:"ward"`
	District   string `gorm:"column:district" json:"district"`
	City       string `gorm:"column:city" json:"city"`
	Country    string `gorm:"column:country" json:"country"`
	PostalCode string `gorm:"column:postal_code" json:"postalCode"`
}

// IsComplete reports whether a carrier can route a parcel to the address.
func (a Address) IsComplete() bool {
	return a.Street != "" && a.District != "" && a.City != ""
}

// Full joins the non-empty parts for carriers that take a single line.
func (a Address) Full() string {
	out := ""
	for _, part := range []string{a.Street, a.Ward, a.District, a.City} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// RecipientShipment is one recipient of a swag order and their parcel.
type RecipientShipment struct {
	ID                      uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SwagOrderID             uuid.UUID             `gorm:"column:swag_order_id;type:uuid;not null;index" json:"swagOrderId"`
	Name                    string                `gorm:"column:name;not null" json:"name"`
	Email                   *string               `gorm:"column:email" json:"email,omitempty"`
	Phone                   string                `gorm:"column:phone;not null;default:''" json:"phone"`
	Address                 Address               `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Status                  enums.RecipientStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	Carrier                 *string               `gorm:"column:carrier" json:"carrier,omitempty"`
	TrackingNumber          *string               `gorm:"column:tracking_number;uniqueIndex" json:"trackingNumber,omitempty"`
	TrackingURL             *string               `gorm:"column:tracking_url" json:"trackingUrl,omitempty"`
	CarrierStatus           *enums.ShipmentStatus `gorm:"column:carrier_status;type:text" json:"carrierStatus,omitempty"`
	ShippingFee             decimal.Decimal       `gorm:"column:shipping_fee;type:numeric(14,2);not null;default:0" json:"shippingFee"`
	ShippedAt               *time.Time            `gorm:"column:shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt             *time.Time            `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	FailureReason           *string               `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	CancelledAt             *time.Time            `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason            *string               `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`
	CancelledTrackingNumber *string               `gorm:"column:cancelled_tracking_number" json:"cancelledTrackingNumber,omitempty"`
	LastTrackedAt           *time.Time            `gorm:"column:last_tracked_at" json:"lastTrackedAt,omitempty"`
	CreatedAt               time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt               time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (r *RecipientShipment) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// HasShipment reports whether a live carrier shipment exists for the recipient.
func (r RecipientShipment) HasShipment() bool {
	return r.TrackingNumber != nil && *r.TrackingNumber != ""
}
