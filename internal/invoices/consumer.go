package invoices

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
	"github.com/printz/fulfillment-backend/pkg/outbox/registry"
)

const invoiceConsumerName = "invoice-issuer"

type issuer interface {
	IssueForSource(ctx context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error)
}

// Consumer issues an invoice for every paid swag or print order seen on the
// domain subscription.
type Consumer struct {
	issuer       issuer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.Decoders
	logg         *logger.Logger
}

func NewConsumer(svc issuer, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		issuer:       svc,
		subscription: subscription,
		idempotency:  manager,
		decoders:     paidEventDecoders(),
		logg:         logg,
	}, nil
}

// Run blocks until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Handle(ctx, msg.ID, msg.Attributes["event_type"], msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle processes one delivery and reports whether it should be acked.
func (c *Consumer) Handle(ctx context.Context, messageID, eventType string, data []byte) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	var sourceType enums.InvoiceSourceType
	switch enums.OutboxEventType(eventType) {
	case enums.EventSwagOrderPaid:
		sourceType = enums.InvoiceSourceSwagOrder
	case enums.EventPrintOrderPaid:
		sourceType = enums.InvoiceSourcePrintOrder
	default:
		return true
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := envelope.ID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	decoded, err := c.decoders.Decode(enums.OutboxEventType(eventType), envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return true
	}
	sourceID := paidOrderID(decoded)
	if sourceID == uuid.Nil {
		c.logg.Warn(logCtx, "paid event without order id")
		return true
	}

	first, err := c.idempotency.Claim(ctx, invoiceConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "claim event failed", err)
		return false
	}
	if !first {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	logCtx = c.logg.WithField(logCtx, "source_id", sourceID.String())
	invoice, err := c.issuer.IssueForSource(ctx, sourceType, sourceID)
	if err != nil {
		if !pkgerrors.Retryable(err) {
			c.logg.Warn(logCtx, "invoice not issued: "+err.Error())
			return true
		}
		c.logg.Error(logCtx, "invoice issuing failed", err)
		_ = c.idempotency.Release(ctx, invoiceConsumerName, eventID)
		return false
	}
	c.logg.Info(c.logg.WithField(logCtx, "invoice_number", invoice.InvoiceNumber), "invoice issued")
	return true
}

func paidEventDecoders() *registry.Decoders {
	decoders := registry.NewDecoders()
	registry.AddJSON[payloads.SwagOrderPaidEvent](decoders, enums.EventSwagOrderPaid, 1)
	registry.AddJSON[payloads.PrintOrderPaidEvent](decoders, enums.EventPrintOrderPaid, 1)
	return decoders
}

func paidOrderID(decoded any) uuid.UUID {
	switch evt := decoded.(type) {
	case *payloads.SwagOrderPaidEvent:
		return evt.OrderID
	case *payloads.PrintOrderPaidEvent:
		return evt.OrderID
	}
	return uuid.Nil
}
