// Package carriers integrates the Vietnamese last-mile carriers behind a
// single Adapter contract.
package carriers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// Party is a sender or receiver on a carrier waybill.
type Party struct {
	Name     string
	Phone    string
	Street   string
	Ward     string
	District string
	Province string
	Country  string
}

// FullAddress joins the non-empty address parts for carriers that take a
// single address line.
func (p Party) FullAddress() string {
	return joinNonEmpty(", ", p.Street, p.Ward, p.District, p.Province)
}

// Package dimensions are grams and centimetres; value is VND.
type Package struct {
	WeightGrams int    `json:"weight" validate:"gt=0"`
	LengthCm    int    `json:"length" validate:"gt=0"`
	WidthCm     int    `json:"width" validate:"gt=0"`
	HeightCm    int    `json:"height" validate:"gt=0"`
	Value       int64  `json:"value" validate:"gte=0"`
	Notes       string `json:"notes,omitempty"`
}

// DefaultPackage is used when bulk shipping without explicit dimensions.
func DefaultPackage() Package {
	return Package{WeightGrams: 500, LengthCm: 30, WidthCm: 20, HeightCm: 10, Value: 500000}
}

type Item struct {
	Name     string
	Quantity int
}

type ShipmentRequest struct {
	// ClientOrderCode is our reference, unique per recipient.
	ClientOrderCode string
	Sender          Party
	Receiver        Party
	Package         Package
	Items           []Item
	Note            string
	CODAmount       int64
}

type ShipmentResult struct {
	TrackingNumber    string
	Status            enums.ShipmentStatus
	Fee               decimal.Decimal
	EstimatedDelivery *time.Time
}

type TrackingEvent struct {
	Status     enums.ShipmentStatus `json:"status"`
	RawStatus  string               `json:"rawStatus"`
	Note       string               `json:"note,omitempty"`
	OccurredAt *time.Time           `json:"occurredAt,omitempty"`
}

type TrackingResult struct {
	TrackingNumber    string               `json:"trackingNumber"`
	Status            enums.ShipmentStatus `json:"status"`
	RawStatus         string               `json:"rawStatus"`
	Events            []TrackingEvent      `json:"events"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
}

// WebhookUpdate is a carrier push normalized into our vocabulary. EventKey
// identifies the push for replay suppression.
type WebhookUpdate struct {
	TrackingNumber string
	Status         enums.ShipmentStatus
	RawStatus      string
	Reason         string
	OccurredAt     *time.Time
	EventKey       string
}

// Adapter is implemented once per carrier.
type Adapter interface {
	Code() string
	CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error)
	TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error)
	CancelShipment(ctx context.Context, tracking string) error
	ParseWebhook(body []byte) (*WebhookUpdate, error)
}
