package carriers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/config"
)

const ghtkTimeLayout = "2006-01-02 15:04:05"

// GHTK is the Giao Hàng Tiết Kiệm client.
type GHTK struct {
	t       *transport
	catalog *Catalog
}

func NewGHTK(cfg config.CarrierConfig, catalog *Catalog, opts ...Option) *GHTK {
	t := newTransport(config.CarrierGHTK, cfg, opts...)
	t.headers.Set("Token", cfg.Token)
	return &GHTK{t: t, catalog: catalog}
}

func (g *GHTK) Code() string { return config.CarrierGHTK }

type ghtkProduct struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity"`
}

type ghtkOrder struct {
	ID           string `json:"id"`
	PickName     string `json:"pick_name"`
	PickAddress  string `json:"pick_address"`
	PickProvince string `json:"pick_province"`
	PickDistrict string `json:"pick_district"`
	PickWard     string `json:"pick_ward,omitempty"`
	PickTel      string `json:"pick_tel"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Province     string `json:"province"`
	District     string `json:"district"`
	Ward         string `json:"ward"`
	Hamlet       string `json:"hamlet"`
	Tel          string `json:"tel"`
	Note         string `json:"note,omitempty"`
	Value        int64  `json:"value"`
	PickMoney    int64  `json:"pick_money"`
	Transport    string `json:"transport"`
}

type ghtkCreateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   struct {
		Label                string          `json:"label"`
		Fee                  decimal.Decimal `json:"fee"`
		EstimatedDeliverTime string          `json:"estimated_deliver_time"`
	} `json:"order"`
}

func (g *GHTK) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	products := make([]ghtkProduct, 0, len(req.Items))
	perItemKg := 0.1
	if n := len(req.Items); n > 0 {
		perItemKg = float64(req.Package.WeightGrams) / 1000 / float64(n)
	}
	for _, item := range req.Items {
		products = append(products, ghtkProduct{Name: item.Name, Weight: perItemKg, Quantity: item.Quantity})
	}
	body := map[string]any{
		"products": products,
		"order": ghtkOrder{
			ID:           req.ClientOrderCode,
			PickName:     req.Sender.Name,
			PickAddress:  req.Sender.Street,
			PickProvince: req.Sender.Province,
			PickDistrict: req.Sender.District,
			PickWard:     req.Sender.Ward,
			PickTel:      req.Sender.Phone,
			Name:         req.Receiver.Name,
			Address:      req.Receiver.Street,
			Province:     req.Receiver.Province,
			District:     req.Receiver.District,
			Ward:         req.Receiver.Ward,
			Hamlet:       "Khác",
			Tel:          req.Receiver.Phone,
			Note:         req.Note,
			Value:        req.Package.Value,
			PickMoney:    req.CODAmount,
			Transport:    "road",
		},
	}
	var out ghtkCreateResponse
	if err := g.t.do(ctx, "create", http.MethodPost, "/services/shipment/order", body, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Order.Label == "" {
		return nil, rejected(g.Code(), "create", out.Message)
	}
	return &ShipmentResult{
		TrackingNumber:    out.Order.Label,
		Status:            g.catalog.MapStatus(g.Code(), "1"),
		Fee:               out.Order.Fee,
		EstimatedDelivery: parseTime([]string{ghtkTimeLayout, "2006-01-02"}, out.Order.EstimatedDeliverTime),
	}, nil
}

type ghtkStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   struct {
		LabelID    string          `json:"label_id"`
		Status     json.Number     `json:"status"`
		StatusText string          `json:"status_text"`
		Modified   string          `json:"modified"`
		Deliver    string          `json:"deliver_date"`
		ShipMoney  decimal.Decimal `json:"ship_money"`
	} `json:"order"`
}

func (g *GHTK) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	var out ghtkStatusResponse
	if err := g.t.do(ctx, "track", http.MethodGet, "/services/shipment/v2/"+url.PathEscape(tracking), nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected(g.Code(), "track", out.Message)
	}
	raw := out.Order.Status.String()
	status := g.catalog.MapStatus(g.Code(), raw)
	return &TrackingResult{
		TrackingNumber:    tracking,
		RawStatus:         raw,
		Status:            status,
		EstimatedDelivery: parseTime([]string{ghtkTimeLayout, "2006-01-02"}, out.Order.Deliver),
		Events: []TrackingEvent{{
			Status:     status,
			RawStatus:  raw,
			Note:       out.Order.StatusText,
			OccurredAt: parseTime([]string{ghtkTimeLayout}, out.Order.Modified),
		}},
	}, nil
}

func (g *GHTK) CancelShipment(ctx context.Context, tracking string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := g.t.do(ctx, "cancel", http.MethodPost, "/services/shipment/cancel/"+url.PathEscape(tracking), nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return rejected(g.Code(), "cancel", out.Message)
	}
	return nil
}

type ghtkWebhook struct {
	LabelID    string      `json:"label_id"`
	PartnerID  string      `json:"partner_id"`
	StatusID   json.Number `json:"status_id"`
	ActionTime string      `json:"action_time"`
	ReasonCode string      `json:"reason_code"`
	Reason     string      `json:"reason"`
}

func (g *GHTK) ParseWebhook(body []byte) (*WebhookUpdate, error) {
	var payload ghtkWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invalidWebhook(g.Code(), err)
	}
	if strings.TrimSpace(payload.LabelID) == "" {
		return nil, invalidWebhook(g.Code(), errMissingTracking)
	}
	raw := payload.StatusID.String()
	if _, err := strconv.Atoi(raw); err != nil {
		return nil, invalidWebhook(g.Code(), err)
	}
	return &WebhookUpdate{
		TrackingNumber: payload.LabelID,
		RawStatus:      raw,
		Status:         g.catalog.MapStatus(g.Code(), raw),
		Reason:         payload.Reason,
		OccurredAt:     parseTime([]string{time.RFC3339, ghtkTimeLayout}, payload.ActionTime),
		EventKey:       strings.Join([]string{payload.LabelID, raw, payload.ActionTime}, ":"),
	}, nil
}
