package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryKeys) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryKeys) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryKeys) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryKeys) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type recordingIssuer struct {
	calls []uuid.UUID
	kinds []enums.InvoiceSourceType
	err   error
}

func (r *recordingIssuer) IssueForSource(_ context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error) {
	r.calls = append(r.calls, sourceID)
	r.kinds = append(r.kinds, sourceType)
	if r.err != nil {
		return nil, r.err
	}
	return &models.Invoice{InvoiceNumber: "INV-2026-0001"}, nil
}

func newTestConsumer(t *testing.T, iss issuer) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryKeys{keys: map[string]bool{}}, time.Hour)
	require.NoError(t, err)
	return &Consumer{issuer: iss, idempotency: manager, decoders: paidEventDecoders(), logg: logger.Nop()}
}

func envelopeFor(t *testing.T, eventID uuid.UUID, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now(), Data: raw})
	require.NoError(t, err)
	return body
}

func TestConsumerIssuesOncePerEvent(t *testing.T) {
	iss := &recordingIssuer{}
	c := newTestConsumer(t, iss)
	orderID := uuid.New()
	body := envelopeFor(t, uuid.New(), payloads.SwagOrderPaidEvent{OrderID: orderID, OrderNumber: "SW-1"})

	require.True(t, c.Handle(context.Background(), "m1", string(enums.EventSwagOrderPaid), body))
	require.True(t, c.Handle(context.Background(), "m2", string(enums.EventSwagOrderPaid), body))

	require.Equal(t, []uuid.UUID{orderID}, iss.calls)
	require.Equal(t, enums.InvoiceSourceSwagOrder, iss.kinds[0])
}

func TestConsumerRoutesPrintOrders(t *testing.T) {
	iss := &recordingIssuer{}
	c := newTestConsumer(t, iss)
	orderID := uuid.New()

	require.True(t, c.Handle(context.Background(), "m1", string(enums.EventPrintOrderPaid),
		envelopeFor(t, uuid.New(), payloads.PrintOrderPaidEvent{OrderID: orderID, OrderNumber: "PO-7"})))
	require.Equal(t, enums.InvoiceSourcePrintOrder, iss.kinds[0])
}

func TestConsumerSkipsUnrelatedEvents(t *testing.T) {
	iss := &recordingIssuer{}
	c := newTestConsumer(t, iss)

	require.True(t, c.Handle(context.Background(), "m1", string(enums.EventSwagOrderKitted), []byte(`{}`)))
	require.Empty(t, iss.calls)
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	iss := &recordingIssuer{err: errors.New("connection reset")}
	c := newTestConsumer(t, iss)
	body := envelopeFor(t, uuid.New(), payloads.SwagOrderPaidEvent{OrderID: uuid.New(), OrderNumber: "SW-2"})

	require.False(t, c.Handle(context.Background(), "m1", string(enums.EventSwagOrderPaid), body))

	iss.err = nil
	require.True(t, c.Handle(context.Background(), "m2", string(enums.EventSwagOrderPaid), body))
	require.Len(t, iss.calls, 2)
}

func TestConsumerAcksMissingOrders(t *testing.T) {
	iss := &recordingIssuer{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	c := newTestConsumer(t, iss)

	require.True(t, c.Handle(context.Background(), "m1", string(enums.EventSwagOrderPaid),
		envelopeFor(t, uuid.New(), payloads.SwagOrderPaidEvent{OrderID: uuid.New(), OrderNumber: "SW-2"})))
}
