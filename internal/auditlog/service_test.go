package auditlog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

func TestRecordAndListByResource(t *testing.T) {
	conn := dbtest.Open(t, "auditlog")
	svc, err := NewService(NewRepository(conn), logger.Nop())
	require.NoError(t, err)

	actor := Actor{UserID: uuid.New(), Role: enums.RoleAdmin, IP: "10.0.0.1"}
	productID := uuid.NewString()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(context.Background(), nil, Entry{
			Actor:        actor,
			Action:       ActionProductStatusChanged,
			ResourceType: "product",
			ResourceID:   productID,
			Details:      map[string]any{"to": "active"},
		}))
	}
	require.NoError(t, svc.Record(context.Background(), nil, Entry{
		Actor:        actor,
		Action:       ActionUserStatusChanged,
		ResourceType: "user",
		ResourceID:   uuid.NewString(),
	}))

	first, err := svc.List(context.Background(), ListParams{ResourceType: "product", Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Logs, 2)
	require.NotEmpty(t, first.NextCursor)
	require.Equal(t, "10.0.0.1", *first.Logs[0].IPAddress)

	second, err := svc.List(context.Background(), ListParams{ResourceType: "product", Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Logs, 1)
	require.Empty(t, second.NextCursor)
}

func TestRecordRequiresAction(t *testing.T) {
	conn := dbtest.Open(t, "auditlog_invalid")
	svc, err := NewService(NewRepository(conn), logger.Nop())
	require.NoError(t, err)

	err = svc.Record(context.Background(), nil, Entry{ResourceType: "product"})
	require.Error(t, err)
}
