package carriers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/config"
)

const viettelTimeLayout = "02/01/2006 15:04:05"

// ViettelPost is the Viettel Post partner API client.
type ViettelPost struct {
	t       *transport
	catalog *Catalog
}

func NewViettelPost(cfg config.CarrierConfig, catalog *Catalog, opts ...Option) *ViettelPost {
	t := newTransport(config.CarrierViettelPost, cfg, opts...)
	t.headers.Set("Token", cfg.Token)
	return &ViettelPost{t: t, catalog: catalog}
}

func (v *ViettelPost) Code() string { return config.CarrierViettelPost }

type viettelEnvelope[T any] struct {
	Status  int    `json:"status"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (e viettelEnvelope[T]) ok() bool {
	return !e.Error && (e.Status == 0 || e.Status == http.StatusOK)
}

type viettelCreateRequest struct {
	OrderNumber      string `json:"ORDER_NUMBER"`
	SenderFullname   string `json:"SENDER_FULLNAME"`
	SenderAddress    string `json:"SENDER_ADDRESS"`
	SenderPhone      string `json:"SENDER_PHONE"`
	ReceiverFullname string `json:"RECEIVER_FULLNAME"`
	ReceiverAddress  string `json:"RECEIVER_ADDRESS"`
	ReceiverPhone    string `json:"RECEIVER_PHONE"`
	ProductName      string `json:"PRODUCT_NAME"`
	ProductQuantity  int    `json:"PRODUCT_QUANTITY"`
	ProductPrice     int64  `json:"PRODUCT_PRICE"`
	ProductWeight    int    `json:"PRODUCT_WEIGHT"`
	ProductLength    int    `json:"PRODUCT_LENGTH"`
	ProductWidth     int    `json:"PRODUCT_WIDTH"`
	ProductHeight    int    `json:"PRODUCT_HEIGHT"`
	ProductType      string `json:"PRODUCT_TYPE"`
	OrderPayment     int    `json:"ORDER_PAYMENT"`
	OrderService     string `json:"ORDER_SERVICE"`
	OrderNote        string `json:"ORDER_NOTE,omitempty"`
	MoneyCollection  int64  `json:"MONEY_COLLECTION"`
}

func (v *ViettelPost) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	quantity := 0
	names := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		quantity += item.Quantity
		names = append(names, item.Name)
	}
	if quantity == 0 {
		quantity = 1
	}
	body := viettelCreateRequest{
		OrderNumber:      req.ClientOrderCode,
		SenderFullname:   req.Sender.Name,
		SenderAddress:    req.Sender.FullAddress(),
		SenderPhone:      req.Sender.Phone,
		ReceiverFullname: req.Receiver.Name,
		ReceiverAddress:  req.Receiver.FullAddress(),
		ReceiverPhone:    req.Receiver.Phone,
		ProductName:      truncate(strings.Join(names, ", "), 200),
		ProductQuantity:  quantity,
		ProductPrice:     req.Package.Value,
		ProductWeight:    req.Package.WeightGrams,
		ProductLength:    req.Package.LengthCm,
		ProductWidth:     req.Package.WidthCm,
		ProductHeight:    req.Package.HeightCm,
		ProductType:      "HH",
		OrderPayment:     1,
		OrderService:     "VCN",
		OrderNote:        req.Note,
		MoneyCollection:  req.CODAmount,
	}
	var out viettelEnvelope[struct {
		OrderNumber string          `json:"ORDER_NUMBER"`
		MoneyTotal  decimal.Decimal `json:"MONEY_TOTAL"`
	}]
	if err := v.t.do(ctx, "create", http.MethodPost, "/order/createOrder", body, &out); err != nil {
		return nil, err
	}
	if !out.ok() || out.Data.OrderNumber == "" {
		return nil, rejected(v.Code(), "create", out.Message)
	}
	return &ShipmentResult{
		TrackingNumber: out.Data.OrderNumber,
		Status:         v.catalog.MapStatus(v.Code(), "100"),
		Fee:            out.Data.MoneyTotal,
	}, nil
}

type viettelStatus struct {
	OrderNumber     string      `json:"ORDER_NUMBER"`
	OrderStatus     json.Number `json:"ORDER_STATUS"`
	StatusName      string      `json:"STATUS_NAME"`
	Note            string      `json:"NOTE"`
	OrderStatusDate string      `json:"ORDER_STATUSDATE"`
}

func (v *ViettelPost) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	var out viettelEnvelope[[]viettelStatus]
	if err := v.t.do(ctx, "track", http.MethodPost, "/order/tracking", map[string]string{"ORDER_NUMBER": tracking}, &out); err != nil {
		return nil, err
	}
	if !out.ok() {
		return nil, rejected(v.Code(), "track", out.Message)
	}
	result := &TrackingResult{TrackingNumber: tracking, Status: v.catalog.MapStatus(v.Code(), "")}
	for _, row := range out.Data {
		raw := row.OrderStatus.String()
		event := TrackingEvent{
			Status:     v.catalog.MapStatus(v.Code(), raw),
			RawStatus:  raw,
			Note:       row.StatusName,
			OccurredAt: parseTime([]string{viettelTimeLayout}, row.OrderStatusDate),
		}
		result.Events = append(result.Events, event)
		result.Status = event.Status
		result.RawStatus = raw
	}
	return result, nil
}

func (v *ViettelPost) CancelShipment(ctx context.Context, tracking string) error {
	body := map[string]any{"TYPE": 4, "ORDER_NUMBER": tracking, "NOTE": "Cancelled by shipper"}
	var out viettelEnvelope[json.RawMessage]
	if err := v.t.do(ctx, "cancel", http.MethodPost, "/order/UpdateOrder", body, &out); err != nil {
		return err
	}
	if !out.ok() {
		return rejected(v.Code(), "cancel", out.Message)
	}
	return nil
}

// Viettel posts either the bare status or wraps it in DATA with a TOKEN.
func (v *ViettelPost) ParseWebhook(body []byte) (*WebhookUpdate, error) {
	var wrapped struct {
		Data *viettelStatus `json:"DATA"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, invalidWebhook(v.Code(), err)
	}
	payload := wrapped.Data
	if payload == nil {
		payload = &viettelStatus{}
		if err := json.Unmarshal(body, payload); err != nil {
			return nil, invalidWebhook(v.Code(), err)
		}
	}
	if strings.TrimSpace(payload.OrderNumber) == "" {
		return nil, invalidWebhook(v.Code(), errMissingTracking)
	}
	raw := payload.OrderStatus.String()
	return &WebhookUpdate{
		TrackingNumber: payload.OrderNumber,
		RawStatus:      raw,
		Status:         v.catalog.MapStatus(v.Code(), raw),
		Reason:         joinNonEmpty(": ", payload.StatusName, payload.Note),
		OccurredAt:     parseTime([]string{viettelTimeLayout}, payload.OrderStatusDate),
		EventKey:       strings.Join([]string{payload.OrderNumber, raw, payload.OrderStatusDate}, ":"),
	}, nil
}
