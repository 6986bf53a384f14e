package orders

import (
	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/internal/pricing"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// ItemInput is one print job; its quantity comes from the specification.
type ItemInput struct {
	Description   string                `json:"description" validate:"required,max=500"`
	Specification pricing.Specification `json:"specification"`
}

type CreateInput struct {
	Items []ItemInput `json:"items" validate:"required,min=1,max=50,dive"`
	Notes *string     `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// ListFilter narrows order listings. A nil CustomerID lists every customer.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.PrintOrderStatus
	Query      string
}

type ListParams struct {
	Status string
	Query  string
	pagination.Params
}

type ListResult struct {
	Orders     []models.PrintOrder `json:"orders"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type PaymentLinkResult struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CheckoutURL string    `json:"checkoutUrl"`
	OrderCode   int64     `json:"orderCode"`
}
