package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/printz/fulfillment-backend/internal/carriers"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/payos"
)

const sourcePayOS = "payos"

type parserSource interface {
	Parser(code string) (carriers.Adapter, error)
}

type shipmentUpdater interface {
	ApplyCarrierUpdate(ctx context.Context, carrier string, update carriers.WebhookUpdate) error
}

// Payer settles an order identified by its PayOS order code.
type Payer interface {
	PayByOrderCode(ctx context.Context, orderCode, amount int64) error
}

// PayerFunc adapts a function to the payer contract.
type PayerFunc func(ctx context.Context, orderCode, amount int64) error

func (f PayerFunc) PayByOrderCode(ctx context.Context, orderCode, amount int64) error {
	return f(ctx, orderCode, amount)
}

type webhookCounter interface {
	IncWebhook(source, result string)
}

// Results counted per delivery.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)

type ServiceParams struct {
	Carriers parserSource
	Shipping shipmentUpdater
	// Payers are tried in order until one recognises the order code.
	Payers   []Payer
	Replay   *ReplayGuard
	Metrics  webhookCounter
	Logger   *logger.Logger
}

// Service consumes authenticated webhook deliveries.
type Service struct {
	carriers parserSource
	shipping shipmentUpdater
	payers   []Payer
	replay   *ReplayGuard
	metrics  webhookCounter
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carriers == nil {
		return nil, fmt.Errorf("carrier factory required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	if params.Replay == nil {
		return nil, fmt.Errorf("replay guard required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		carriers: params.Carriers,
		shipping: params.Shipping,
		payers:   params.Payers,
		replay:   params.Replay,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// HandleCarrier applies a carrier status push. Unknown tracking numbers and
// pushes from the wrong carrier are logged and acknowledged so the carrier
// stops retrying.
func (s *Service) HandleCarrier(ctx context.Context, carrier string, body []byte) (string, error) {
	parser, err := s.carriers.Parser(carrier)
	if err != nil {
		return s.count(carrier, ResultFailed), err
	}
	update, err := parser.ParseWebhook(body)
	if err != nil {
		return s.count(carrier, ResultFailed), err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"carrier":         carrier,
		"tracking_number": update.TrackingNumber,
		"status":          string(update.Status),
		"raw_status":      update.RawStatus,
	})

	claimed, err := s.replay.Claim(ctx, carrier, update.EventKey)
	if err != nil {
		return s.count(carrier, ResultFailed), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook replay guard")
	}
	if !claimed {
		s.logg.Info(logCtx, "duplicate carrier webhook ignored")
		return s.count(carrier, ResultDuplicate), nil
	}

	if err := s.shipping.ApplyCarrierUpdate(ctx, carrier, *update); err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.logg.Warn(logCtx, "carrier webhook for unknown shipment")
			return s.count(carrier, ResultIgnored), nil
		case errors.Is(err, carriers.ErrForeignTracking):
			s.logg.Warn(logCtx, "carrier webhook for a shipment booked with another carrier")
			return s.count(carrier, ResultIgnored), nil
		}
		s.release(ctx, carrier, update.EventKey)
		s.logg.Error(logCtx, "apply carrier webhook", err)
		return s.count(carrier, ResultFailed), err
	}
	s.logg.Info(logCtx, "carrier webhook applied")
	return s.count(carrier, ResultApplied), nil
}

// HandlePayOS settles the order a confirmed PayOS transfer belongs to. The
// body must already have passed PayOSAuthenticator.
func (s *Service) HandlePayOS(ctx context.Context, body []byte) (string, error) {
	envelope, err := payos.ParseWebhook(body)
	if err != nil {
		return s.count(sourcePayOS, ResultFailed), pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payos webhook")
	}
	var data payos.WebhookData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return s.count(sourcePayOS, ResultFailed), pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payos webhook data")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_code": data.OrderCode,
		"amount":     data.Amount,
		"reference":  data.Reference,
		"code":       data.Code,
	})
	if !data.Paid() {
		s.logg.Info(logCtx, "payos webhook without successful payment")
		return s.count(sourcePayOS, ResultIgnored), nil
	}

	key := strconv.FormatInt(data.OrderCode, 10) + ":" + data.Reference
	claimed, err := s.replay.Claim(ctx, sourcePayOS, key)
	if err != nil {
		return s.count(sourcePayOS, ResultFailed), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook replay guard")
	}
	if !claimed {
		s.logg.Info(logCtx, "duplicate payos webhook ignored")
		return s.count(sourcePayOS, ResultDuplicate), nil
	}

	for _, payer := range s.payers {
		err := payer.PayByOrderCode(ctx, data.OrderCode, data.Amount)
		if err == nil {
			s.logg.Info(logCtx, "payos payment applied")
			return s.count(sourcePayOS, ResultApplied), nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			continue
		}
		s.release(ctx, sourcePayOS, key)
		s.logg.Error(logCtx, "apply payos payment", err)
		return s.count(sourcePayOS, ResultFailed), err
	}
	s.logg.Warn(logCtx, "payos webhook for unknown order code")
	return s.count(sourcePayOS, ResultIgnored), nil
}

func (s *Service) release(ctx context.Context, source, key string) {
	if err := s.replay.Release(ctx, source, key); err != nil {
		s.logg.Error(ctx, "release webhook replay claim", err)
	}
}

func (s *Service) count(source, result string) string {
	if s.metrics != nil {
		s.metrics.IncWebhook(source, result)
	}
	return result
}
