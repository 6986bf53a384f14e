package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateSwagOrder     OutboxAggregateType = "swag_order"
	AggregatePrintOrder    OutboxAggregateType = "print_order"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateShipment      OutboxAggregateType = "recipient_shipment"
	AggregateInvoice       OutboxAggregateType = "invoice"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSwagOrder,
	AggregatePrintOrder,
	AggregateInventoryItem,
	AggregateShipment,
	AggregateInvoice,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool { return contains(validAggregateTypes, a) }

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventSwagOrderCreated      OutboxEventType = "swag_order_created"
	EventSwagOrderPaid         OutboxEventType = "swag_order_paid"
	EventSwagOrderCancelled    OutboxEventType = "swag_order_cancelled"
	EventSwagOrderKitted       OutboxEventType = "swag_order_kitted"
	EventShipmentStatusChanged OutboxEventType = "shipment_status_changed"
	EventPrintOrderPaid        OutboxEventType = "print_order_paid"
	EventInventoryLowStock     OutboxEventType = "inventory_low_stock"
	EventInvoiceIssued         OutboxEventType = "invoice_issued"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSwagOrderCreated,
	EventSwagOrderPaid,
	EventSwagOrderCancelled,
	EventSwagOrderKitted,
	EventShipmentStatusChanged,
	EventPrintOrderPaid,
	EventInventoryLowStock,
	EventInvoiceIssued,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool { return contains(validOutboxEventTypes, e) }

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why an event stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
