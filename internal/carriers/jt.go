package carriers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/config"
)

const jtTimeLayout = "2006-01-02 15:04:05"

// JT is the J&T Express open API client.
type JT struct {
	t            *transport
	catalog      *Catalog
	customerCode string
}

func NewJT(cfg config.CarrierConfig, catalog *Catalog, opts ...Option) *JT {
	t := newTransport(config.CarrierJT, cfg, opts...)
	t.headers.Set("apiAccount", cfg.ShopID)
	t.headers.Set("token", cfg.Token)
	return &JT{t: t, catalog: catalog, customerCode: cfg.ShopID}
}

func (j *JT) Code() string { return config.CarrierJT }

type jtEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func (e jtEnvelope[T]) ok() bool { return e.Code == "1" }

type jtParty struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Prov    string `json:"prov"`
	City    string `json:"city"`
	Area    string `json:"area"`
	Address string `json:"address"`
}

type jtCreateRequest struct {
	CustomerCode  string  `json:"customerCode"`
	TxLogisticID  string  `json:"txlogisticId"`
	ServiceType   string  `json:"serviceType"`
	Sender        jtParty `json:"sender"`
	Receiver      jtParty `json:"receiver"`
	Weight        float64 `json:"weight"`
	Length        int     `json:"length"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	ItemsValue    int64   `json:"itemsValue"`
	CODAmount     int64   `json:"codMoney"`
	TotalQuantity int     `json:"totalQuantity"`
	Remark        string  `json:"remark,omitempty"`
}

func jtPartyFrom(p Party) jtParty {
	return jtParty{Name: p.Name, Mobile: p.Phone, Prov: p.Province, City: p.District, Area: p.Ward, Address: p.Street}
}

func (j *JT) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResult, error) {
	qty := 0
	for _, item := range req.Items {
		qty += item.Quantity
	}
	body := jtCreateRequest{
		CustomerCode:  j.customerCode,
		TxLogisticID:  req.ClientOrderCode,
		ServiceType:   "01",
		Sender:        jtPartyFrom(req.Sender),
		Receiver:      jtPartyFrom(req.Receiver),
		Weight:        float64(req.Package.WeightGrams) / 1000,
		Length:        req.Package.LengthCm,
		Width:         req.Package.WidthCm,
		Height:        req.Package.HeightCm,
		ItemsValue:    req.Package.Value,
		CODAmount:     req.CODAmount,
		TotalQuantity: qty,
		Remark:        req.Note,
	}
	var out jtEnvelope[struct {
		BillCode   string          `json:"billCode"`
		SumFreight decimal.Decimal `json:"sumFreight"`
	}]
	if err := j.t.do(ctx, "create", http.MethodPost, "/api/order/addOrder", body, &out); err != nil {
		return nil, err
	}
	if !out.ok() || out.Data.BillCode == "" {
		return nil, rejected(j.Code(), "create", out.Msg)
	}
	return &ShipmentResult{
		TrackingNumber: out.Data.BillCode,
		Status:         j.catalog.MapStatus(j.Code(), "pending"),
		Fee:            out.Data.SumFreight,
	}, nil
}

type jtScan struct {
	ScanType string `json:"scanType"`
	ScanTime string `json:"scanTime"`
	Desc     string `json:"desc"`
}

func (j *JT) TrackShipment(ctx context.Context, tracking string) (*TrackingResult, error) {
	var out jtEnvelope[[]struct {
		BillCode string   `json:"billCode"`
		Details  []jtScan `json:"details"`
	}]
	if err := j.t.do(ctx, "track", http.MethodPost, "/api/logistics/trace", map[string]string{"billCodes": tracking}, &out); err != nil {
		return nil, err
	}
	if !out.ok() {
		return nil, rejected(j.Code(), "track", out.Msg)
	}
	result := &TrackingResult{TrackingNumber: tracking, Status: j.catalog.MapStatus(j.Code(), "")}
	for _, bill := range out.Data {
		if bill.BillCode != tracking {
			continue
		}
		for _, scan := range bill.Details {
			event := TrackingEvent{
				Status:     j.catalog.MapStatus(j.Code(), scan.ScanType),
				RawStatus:  scan.ScanType,
				Note:       scan.Desc,
				OccurredAt: parseTime([]string{jtTimeLayout}, scan.ScanTime),
			}
			result.Events = append(result.Events, event)
			result.Status = event.Status
			result.RawStatus = scan.ScanType
		}
	}
	return result, nil
}

func (j *JT) CancelShipment(ctx context.Context, tracking string) error {
	body := map[string]string{"customerCode": j.customerCode, "billCode": tracking, "reason": "Cancelled by shipper"}
	var out jtEnvelope[json.RawMessage]
	if err := j.t.do(ctx, "cancel", http.MethodPost, "/api/order/cancelOrder", body, &out); err != nil {
		return err
	}
	if !out.ok() {
		return rejected(j.Code(), "cancel", out.Msg)
	}
	return nil
}

func (j *JT) ParseWebhook(body []byte) (*WebhookUpdate, error) {
	var payload struct {
		BillCode string `json:"billCode"`
		jtScan
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invalidWebhook(j.Code(), err)
	}
	if strings.TrimSpace(payload.BillCode) == "" {
		return nil, invalidWebhook(j.Code(), errMissingTracking)
	}
	return &WebhookUpdate{
		TrackingNumber: payload.BillCode,
		RawStatus:      payload.ScanType,
		Status:         j.catalog.MapStatus(j.Code(), payload.ScanType),
		Reason:         payload.Desc,
		OccurredAt:     parseTime([]string{jtTimeLayout}, payload.ScanTime),
		EventKey:       strings.Join([]string{payload.BillCode, payload.ScanType, payload.ScanTime}, ":"),
	}, nil
}
