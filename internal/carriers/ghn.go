package carriers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/config"
)

// GHN is the Giao Hàng Nhanh client.
type GHN struct {
	t       *transport
	catalog *Catalog
}

func NewGHN(cfg config.CarrierConfig, catalog *Catalog, opts ...Option) *GHN {
	t := newTransport(config.CarrierGHN, cfg, opts...)
	t.headers.Set("Token", cfg.Token)
	if cfg.ShopID != "" {
		t.headers.Set("ShopId", cfg.ShopID)
	}
	return &GHN{t: t, catalog: catalog}
}

func (g *GHN) Code() string { return config.CarrierGHN }

type ghnEnvelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type ghnItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Weight   int    `json:"weight"`
}

type ghnCreateRequest struct {
	PaymentTypeID   int       `json:"payment_type_id"`
	ServiceTypeID   int       `json:"service_type_id"`
	RequiredNote    string    `json:"required_note"`
	ClientOrderCode string    `json:"client_order_code"`
	Note            string    `json:"note,omitempty"`
	FromName        string    `json:"from_name"`
	FromPhone       string    `json:"from_phone"`
	FromAddress     string    `json:"from_address"`
	FromWardName    string    `json:"from_ward_name,omitempty"`
	FromDistrict    string    `json:"from_district_name,omitempty"`
	FromProvince    string    `json:"from_province_name"`
	ToName          string    `json:"to_name"`
	ToPhone         string    `json:"to_phone"`
	ToAddress       string    `json:"to_address"`
	ToWardName      string    `json:"to_ward_name"`
	ToDistrictName  string    `json:"to_district_name"`
	ToProvinceName  string    `json:"to_province_name"`
	Weight          int       `json:"weight"`
	Length          int       `json:"length"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	InsuranceValue  int64     `json:"insurance_value"`
	CODAmount       int64     `json:"cod_amount"`
	Items           []ghnItem `json:"items"`
}

type ghnCreateData struct {
	OrderCode            string          `json:"order_code"`
	TotalFee             decimal.Decimal `json:"total_fee"`
	ExpectedDeliveryTime string          `json:"expected_delivery_time"`
}

func (g *GHN) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	body := ghnCreateRequest{
		PaymentTypeID:   1,
		ServiceTypeID:   2,
		RequiredNote:    "KHONGCHOXEMHANG",
		ClientOrderCode: req.ClientOrderCode,
		Note:            req.Note,
		FromName:        req.Sender.Name,
		FromPhone:       req.Sender.Phone,
		FromAddress:     req.Sender.FullAddress(),
		FromWardName:    req.Sender.Ward,
		FromDistrict:    req.Sender.District,
		FromProvince:    req.Sender.Province,
		ToName:          req.Receiver.Name,
		ToPhone:         req.Receiver.Phone,
		ToAddress:       req.Receiver.FullAddress(),
		ToWardName:      req.Receiver.Ward,
		ToDistrictName:  req.Receiver.District,
		ToProvinceName:  req.Receiver.Province,
		Weight:          req.Package.WeightGrams,
		Length:          req.Package.LengthCm,
		Width:           req.Package.WidthCm,
		Height:          req.Package.HeightCm,
		InsuranceValue:  req.Package.Value,
		CODAmount:       req.CODAmount,
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, ghnItem{Name: item.Name, Quantity: item.Quantity, Weight: 100})
	}
	var out ghnEnvelope[ghnCreateData]
	if err := g.t.do(ctx, "create", http.MethodPost, "/v2/shipping-order/create", body, &out); err != nil {
		return nil, err
	}
	if out.Code != http.StatusOK || out.Data.OrderCode == "" {
		return nil, rejected(g.Code(), "create", out.Message)
	}
	return &ShipmentResult{
		TrackingNumber:    out.Data.OrderCode,
		Status:            g.catalog.MapStatus(g.Code(), "ready_to_pick"),
		Fee:               out.Data.TotalFee,
		EstimatedDelivery: parseTime([]string{time.RFC3339}, out.Data.ExpectedDeliveryTime),
	}, nil
}

type ghnDetailData struct {
	OrderCode string `json:"order_code"`
	Status    string `json:"status"`
	Leadtime  string `json:"leadtime"`
	Log       []struct {
		Status      string `json:"status"`
		UpdatedDate string `json:"updated_date"`
	} `json:"log"`
}

func (g *GHN) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	var out ghnEnvelope[ghnDetailData]
	if err := g.t.do(ctx, "track", http.MethodPost, "/v2/shipping-order/detail", map[string]string{"order_code": tracking}, &out); err != nil {
		return nil, err
	}
	if out.Code != http.StatusOK {
		return nil, rejected(g.Code(), "track", out.Message)
	}
	result := &TrackingResult{
		TrackingNumber:    tracking,
		RawStatus:         out.Data.Status,
		Status:            g.catalog.MapStatus(g.Code(), out.Data.Status),
		EstimatedDelivery: parseTime([]string{time.RFC3339}, out.Data.Leadtime),
	}
	for _, entry := range out.Data.Log {
		result.Events = append(result.Events, TrackingEvent{
			Status:     g.catalog.MapStatus(g.Code(), entry.Status),
			RawStatus:  entry.Status,
			OccurredAt: parseTime([]string{time.RFC3339}, entry.UpdatedDate),
		})
	}
	return result, nil
}

func (g *GHN) CancelShipment(ctx context.Context, tracking string) error {
	var out ghnEnvelope[[]struct {
		OrderCode string `json:"order_code"`
		Result    bool   `json:"result"`
		Message   string `json:"message"`
	}]
	if err := g.t.do(ctx, "cancel", http.MethodPost, "/v2/switch-status/cancel", map[string][]string{"order_codes": {tracking}}, &out); err != nil {
		return err
	}
	if out.Code != http.StatusOK {
		return rejected(g.Code(), "cancel", out.Message)
	}
	for _, row := range out.Data {
		if row.OrderCode == tracking && !row.Result {
			return rejected(g.Code(), "cancel", row.Message)
		}
	}
	return nil
}

type ghnWebhook struct {
	OrderCode       string `json:"OrderCode"`
	ClientOrderCode string `json:"ClientOrderCode"`
	Status          string `json:"Status"`
	Reason          string `json:"Reason"`
	Time            string `json:"Time"`
	Type            string `json:"Type"`
}

func (g *GHN) ParseWebhook(body []byte) (*WebhookUpdate, error) {
	var payload ghnWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invalidWebhook(g.Code(), err)
	}
	if strings.TrimSpace(payload.OrderCode) == "" {
		return nil, invalidWebhook(g.Code(), errMissingTracking)
	}
	return &WebhookUpdate{
		TrackingNumber: payload.OrderCode,
		RawStatus:      payload.Status,
		Status:         g.catalog.MapStatus(g.Code(), payload.Status),
		Reason:         payload.Reason,
		OccurredAt:     parseTime([]string{time.RFC3339}, payload.Time),
		EventKey:       strings.Join([]string{payload.OrderCode, payload.Status, payload.Time}, ":"),
	}, nil
}
