package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

func TestDecodersDispatchByVersion(t *testing.T) {
	d := NewDecoders()
	d.Add(enums.EventInventoryLowStock, 1, func(data json.RawMessage) (any, error) {
		var m map[string]any
		return m, json.Unmarshal(data, &m)
	})

	out, err := d.Decode(enums.EventInventoryLowStock, 1, json.RawMessage(`{"sku":"TEE-BLK-M"}`))
	require.NoError(t, err)
	require.Equal(t, "TEE-BLK-M", out.(map[string]any)["sku"])

	_, err = d.Decode(enums.EventInventoryLowStock, 2, nil)
	require.ErrorIs(t, err, ErrUnknownSchema)
	require.ErrorContains(t, err, "@v2")
}

func TestDecodersRejectDuplicates(t *testing.T) {
	d := NewDecoders()
	AddJSON[payloads.InventoryLowStockEvent](d, enums.EventInventoryLowStock, 1)
	require.Panics(t, func() {
		AddJSON[payloads.InventoryLowStockEvent](d, enums.EventInventoryLowStock, 1)
	})
}

func TestAddJSONValidatesPayload(t *testing.T) {
	d := NewDecoders()
	AddJSON[payloads.PrintOrderPaidEvent](d, enums.EventPrintOrderPaid, 1)

	orderID := uuid.New()
	out, err := d.Decode(enums.EventPrintOrderPaid, 1,
		json.RawMessage(`{"order_id":"`+orderID.String()+`","order_number":"PO-1","amount":"125000"}`))
	require.NoError(t, err)
	evt, ok := out.(*payloads.PrintOrderPaidEvent)
	require.True(t, ok)
	require.Equal(t, orderID, evt.OrderID)
	require.Equal(t, "125000", evt.Amount.String())

	_, err = d.Decode(enums.EventPrintOrderPaid, 1, json.RawMessage(`{"order_number":"PO-1"}`))
	require.ErrorContains(t, err, "OrderID")

	_, err = d.Decode(enums.EventPrintOrderPaid, 1, json.RawMessage(`{"order_id":`))
	require.Error(t, err)
}
