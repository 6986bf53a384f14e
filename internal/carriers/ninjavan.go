package carriers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/printz/fulfillment-backend/pkg/config"
)

// NinjaVan is the Ninja Van order API client. The configured base URL
// carries the country segment, e.g. https://api.ninjavan.co/vn.
type NinjaVan struct {
	t       *transport
	catalog *Catalog
}

func NewNinjaVan(cfg config.CarrierConfig, catalog *Catalog, opts ...Option) *NinjaVan {
	t := newTransport(config.CarrierNinjaVan, cfg, opts...)
	t.headers.Set("Authorization", "Bearer "+cfg.Token)
	return &NinjaVan{t: t, catalog: catalog}
}

func (n *NinjaVan) Code() string { return config.CarrierNinjaVan }

type ninjaAddress struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country"`
}

type ninjaParty struct {
	Name        string       `json:"name"`
	PhoneNumber string       `json:"phone_number"`
	Address     ninjaAddress `json:"address"`
}

func ninjaPartyFrom(p Party) ninjaParty {
	country := p.Country
	if country == "" {
		country = "VN"
	}
	return ninjaParty{
		Name:        p.Name,
		PhoneNumber: p.Phone,
		Address: ninjaAddress{
			Address1: p.Street,
			Address2: joinNonEmpty(", ", p.Ward, p.District),
			City:     p.District,
			Province: p.Province,
			Country:  country,
		},
	}
}

type ninjaOrderRequest struct {
	ServiceType  string `json:"service_type"`
	ServiceLevel string `json:"service_level"`
	Reference    struct {
		MerchantOrderNumber string `json:"merchant_order_number"`
	} `json:"reference"`
	From ninjaParty `json:"from"`
	To   ninjaParty `json:"to"`
	ParcelJob struct {
		IsPickupRequired     bool   `json:"is_pickup_required"`
		DeliveryInstructions string `json:"delivery_instructions,omitempty"`
		InsuredValue         int64  `json:"insured_value"`
		CashOnDelivery       int64  `json:"cash_on_delivery,omitempty"`
		Dimensions           struct {
			Weight float64 `json:"weight"`
			Length int     `json:"length"`
			Width  int     `json:"width"`
			Height int     `json:"height"`
		} `json:"dimensions"`
	} `json:"parcel_job"`
}

func (n *NinjaVan) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	var body ninjaOrderRequest
	body.ServiceType = "Parcel"
	body.ServiceLevel = "Standard"
	body.Reference.MerchantOrderNumber = req.ClientOrderCode
	body.From = ninjaPartyFrom(req.Sender)
	body.To = ninjaPartyFrom(req.Receiver)
	body.ParcelJob.IsPickupRequired = true
	body.ParcelJob.DeliveryInstructions = req.Note
	body.ParcelJob.InsuredValue = req.Package.Value
	body.ParcelJob.CashOnDelivery = req.CODAmount
	body.ParcelJob.Dimensions.Weight = float64(req.Package.WeightGrams) / 1000
	body.ParcelJob.Dimensions.Length = req.Package.LengthCm
	body.ParcelJob.Dimensions.Width = req.Package.WidthCm
	body.ParcelJob.Dimensions.Height = req.Package.HeightCm

	var out struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if err := n.t.do(ctx, "create", http.MethodPost, "/4.2/orders", body, &out); err != nil {
		return nil, err
	}
	if out.TrackingNumber == "" {
		return nil, rejected(n.Code(), "create", "no tracking number returned")
	}
	return &ShipmentResult{
		TrackingNumber: out.TrackingNumber,
		Status:         n.catalog.MapStatus(n.Code(), "Pending Pickup"),
	}, nil
}

type ninjaEvent struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Comments  string `json:"comments"`
}

func (n *NinjaVan) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	var out struct {
		Data []struct {
			TrackingNumber string       `json:"tracking_number"`
			Events         []ninjaEvent `json:"events"`
		} `json:"data"`
	}
	path := "/1.0/orders/tracking-events?tracking_numbers=" + url.QueryEscape(tracking)
	if err := n.t.do(ctx, "track", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	result := &TrackingResult{TrackingNumber: tracking, Status: n.catalog.MapStatus(n.Code(), "")}
	for _, order := range out.Data {
		if order.TrackingNumber != tracking {
			continue
		}
		for _, ev := range order.Events {
			event := TrackingEvent{
				Status:     n.catalog.MapStatus(n.Code(), ev.Status),
				RawStatus:  ev.Status,
				Note:       ev.Comments,
				OccurredAt: parseTime([]string{time.RFC3339}, ev.Timestamp),
			}
			result.Events = append(result.Events, event)
			result.Status = event.Status
			result.RawStatus = ev.Status
		}
	}
	return result, nil
}

func (n *NinjaVan) CancelShipment(ctx context.Context, tracking string) error {
	return n.t.do(ctx, "cancel", http.MethodDelete, "/2.2/orders/"+url.PathEscape(tracking), nil, nil)
}

func (n *NinjaVan) ParseWebhook(body []byte) (*WebhookUpdate, error) {
	var payload struct {
		TrackingID string `json:"tracking_id"`
		ninjaEvent
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invalidWebhook(n.Code(), err)
	}
	if strings.TrimSpace(payload.TrackingID) == "" {
		return nil, invalidWebhook(n.Code(), errMissingTracking)
	}
	return &WebhookUpdate{
		TrackingNumber: payload.TrackingID,
		RawStatus:      payload.Status,
		Status:         n.catalog.MapStatus(n.Code(), payload.Status),
		Reason:         payload.Comments,
		OccurredAt:     parseTime([]string{time.RFC3339}, payload.Timestamp),
		EventKey:       strings.Join([]string{payload.TrackingID, payload.Status, payload.Timestamp}, ":"),
	}, nil
}
