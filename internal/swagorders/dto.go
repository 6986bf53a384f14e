package swagorders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

type AddressInput struct {
	Street     string `json:"street"`
	Ward       string `json:"ward"`
	District   string `json:"district"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

func (a AddressInput) toModel() models.Address {
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = "VN"
	}
	return models.Address{
		Street:     strings.TrimSpace(a.Street),
		Ward:       strings.TrimSpace(a.Ward),
		District:   strings.TrimSpace(a.District),
		City:       strings.TrimSpace(a.City),
		Country:    country,
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

type RecipientInput struct {
	Name    string       `json:"name" validate:"required,max=200"`
	Email   *string      `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string       `json:"phone" validate:"omitempty,max=20,vnphone"`
	Address AddressInput `json:"address"`
}

type CreateInput struct {
	SwagPackID        uuid.UUID        `json:"swagPackId" validate:"required"`
	Name              string           `json:"name" validate:"max=200"`
	ShippingMethod    string           `json:"shippingMethod"`
	Recipients        []RecipientInput `json:"recipients" validate:"required,min=1,max=1000,dive"`
	ScheduledSendDate *time.Time       `json:"scheduledSendDate,omitempty"`
	Discount          decimal.Decimal  `json:"-"`
}

type ProductionInput struct {
	Status     *string `json:"status,omitempty"`
	QCRequired *bool   `json:"qcRequired,omitempty"`
	QCStatus   *string `json:"qcStatus,omitempty"`
}

type ListParams struct {
	Status string
	Query  string
	pagination.Params
}

type ListResult struct {
	Orders     []models.SwagOrder `json:"orders"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

type PaymentLinkResult struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OrderCode   int64     `json:"orderCode"`
	CheckoutURL string    `json:"checkoutUrl"`
}
