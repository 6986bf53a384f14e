package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and which
// aggregate it must belong to.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation, with its decoded
// payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never publish; the publisher
// dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// EventRegistry knows every event the platform publishes. All of them go
// to the one domain topic; subscribers filter on the event_type attribute.
type EventRegistry struct {
	topic      string
	aggregates map[enums.OutboxEventType]enums.OutboxAggregateType
	decoders   *Decoders
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	r := &EventRegistry{
		topic:      topic,
		aggregates: make(map[enums.OutboxEventType]enums.OutboxAggregateType),
		decoders:   NewDecoders(),
	}
	declare[payloads.SwagOrderCreatedEvent](r, enums.EventSwagOrderCreated, enums.AggregateSwagOrder)
	declare[payloads.SwagOrderPaidEvent](r, enums.EventSwagOrderPaid, enums.AggregateSwagOrder)
	declare[payloads.SwagOrderCancelledEvent](r, enums.EventSwagOrderCancelled, enums.AggregateSwagOrder)
	declare[payloads.SwagOrderKittedEvent](r, enums.EventSwagOrderKitted, enums.AggregateSwagOrder)
	declare[payloads.ShipmentStatusChangedEvent](r, enums.EventShipmentStatusChanged, enums.AggregateShipment)
	declare[payloads.PrintOrderPaidEvent](r, enums.EventPrintOrderPaid, enums.AggregatePrintOrder)
	declare[payloads.InventoryLowStockEvent](r, enums.EventInventoryLowStock, enums.AggregateInventoryItem)
	declare[payloads.InvoiceIssuedEvent](r, enums.EventInvoiceIssued, enums.AggregateInvoice)
	return r, nil
}

// declare registers the v1 schema of event.
func declare[T any](r *EventRegistry, event enums.OutboxEventType, aggregate enums.OutboxAggregateType) {
	r.aggregates[event] = aggregate
	AddJSON[T](r.decoders, event, 1)
}

// Resolve checks the row against its descriptor and decodes the payload for
// the envelope's schema version. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	aggregate, ok := r.aggregates[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case aggregate != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s belongs to %s, row has %s",
			event.EventType, aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if errors.Is(err, outbox.ErrEmptyEventData) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{
		Descriptor: EventDescriptor{EventType: event.EventType, AggregateType: aggregate, Topic: r.topic},
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
