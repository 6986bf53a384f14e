package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/api/middleware"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/carriers"
	internalshipping "github.com/printz/fulfillment-backend/internal/shipping"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type stubShipping struct {
	internalshipping.Service
	create func(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, input internalshipping.CreateInput) (*internalshipping.ShipmentView, error)
	bulk   func(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalshipping.BulkInput) (*internalshipping.BulkResult, error)
	cancel func(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, reason string) (*models.RecipientShipment, error)
}

func (s *stubShipping) Carriers() []carriers.Info {
	return []carriers.Info{{Code: "ghn", Name: "Giao Hàng Nhanh", Enabled: true}}
}

func (s *stubShipping) CreateShipment(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, input internalshipping.CreateInput) (*internalshipping.ShipmentView, error) {
	return s.create(ctx, actor, orderID, recipientID, input)
}

func (s *stubShipping) BulkCreate(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalshipping.BulkInput) (*internalshipping.BulkResult, error) {
	return s.bulk(ctx, actor, orderID, input)
}

func (s *stubShipping) Cancel(ctx context.Context, actor auditlog.Actor, orderID, recipientID uuid.UUID, reason string) (*models.RecipientShipment, error) {
	return s.cancel(ctx, actor, orderID, recipientID, reason)
}

func adminRequest(method, body string, adminID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if adminID != uuid.Nil {
		ctx = middleware.WithIdentity(ctx, adminID, enums.RoleAdmin)
	}
	return req.WithContext(ctx)
}

func recipientParams(orderID, recipientID uuid.UUID) map[string]string {
	return map[string]string{"orderId": orderID.String(), "recipientId": recipientID.String()}
}

func TestCarriersListsFactoryInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	Carriers(&stubShipping{}, nil).ServeHTTP(rec, adminRequest(http.MethodGet, "", uuid.New(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"ghn"`)
}

func TestCreateShipmentDefaultsPackageAndReturnsCreated(t *testing.T) {
	adminID, orderID, recipientID := uuid.New(), uuid.New(), uuid.New()
	svc := &stubShipping{
		create: func(_ context.Context, actor auditlog.Actor, gotOrder, gotRecipient uuid.UUID, input internalshipping.CreateInput) (*internalshipping.ShipmentView, error) {
			require.Equal(t, adminID, actor.UserID)
			require.Equal(t, orderID, gotOrder)
			require.Equal(t, recipientID, gotRecipient)
			require.Equal(t, "ghn", input.Carrier)
			require.Nil(t, input.Package)
			return &internalshipping.ShipmentView{RecipientID: gotRecipient, Carrier: "ghn", TrackingNumber: "GHN9X", Status: enums.ShipmentCreated, Fee: "33000"}, nil
		},
	}
	rec := httptest.NewRecorder()
	CreateShipment(svc, nil).ServeHTTP(rec, adminRequest(http.MethodPost, `{"carrier":"ghn"}`, adminID, recipientParams(orderID, recipientID)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var payload struct {
		Data internalshipping.ShipmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "GHN9X", payload.Data.TrackingNumber)
}

func TestCreateShipmentRejectsBadPackage(t *testing.T) {
	svc := &stubShipping{
		create: func(context.Context, auditlog.Actor, uuid.UUID, uuid.UUID, internalshipping.CreateInput) (*internalshipping.ShipmentView, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	body := `{"carrier":"ghn","package":{"weight":0,"length":10,"width":10,"height":10}}`
	rec := httptest.NewRecorder()
	CreateShipment(svc, nil).ServeHTTP(rec, adminRequest(http.MethodPost, body, uuid.New(), recipientParams(uuid.New(), uuid.New())))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateShipmentMapsCarrierOutage(t *testing.T) {
	svc := &stubShipping{
		create: func(context.Context, auditlog.Actor, uuid.UUID, uuid.UUID, internalshipping.CreateInput) (*internalshipping.ShipmentView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "ghn create failed")
		},
	}
	rec := httptest.NewRecorder()
	CreateShipment(svc, nil).ServeHTTP(rec, adminRequest(http.MethodPost, `{"carrier":"ghn"}`, uuid.New(), recipientParams(uuid.New(), uuid.New())))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBulkCreatePartialFailureIsOK(t *testing.T) {
	picked := uuid.New()
	svc := &stubShipping{
		bulk: func(_ context.Context, _ auditlog.Actor, _ uuid.UUID, input internalshipping.BulkInput) (*internalshipping.BulkResult, error) {
			require.Equal(t, []uuid.UUID{picked}, input.RecipientIDs)
			return &internalshipping.BulkResult{
				Success: 1,
				Failed:  1,
				Results: []internalshipping.ShipmentView{{TrackingNumber: "GHN1"}},
				Errors:  []internalshipping.BulkError{{RecipientName: "Lan", Error: "ghn rejected create"}},
			}, nil
		},
	}
	body := `{"carrier":"ghn","recipientIds":["` + picked.String() + `"]}`
	rec := httptest.NewRecorder()
	BulkCreate(svc, nil).ServeHTTP(rec, adminRequest(http.MethodPost, body, uuid.New(), map[string]string{"orderId": uuid.NewString()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data internalshipping.BulkResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 1, payload.Data.Failed)
	require.Equal(t, "Lan", payload.Data.Errors[0].RecipientName)
}

func TestBulkCreateRequiresCarrier(t *testing.T) {
	rec := httptest.NewRecorder()
	BulkCreate(&stubShipping{}, nil).ServeHTTP(rec, adminRequest(http.MethodPost, `{}`, uuid.New(), map[string]string{"orderId": uuid.NewString()}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAcceptsEmptyBody(t *testing.T) {
	var gotReason = "unset"
	svc := &stubShipping{
		cancel: func(_ context.Context, _ auditlog.Actor, _, _ uuid.UUID, reason string) (*models.RecipientShipment, error) {
			gotReason = reason
			return &models.RecipientShipment{Status: enums.RecipientProcessing}, nil
		},
	}
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, adminRequest(http.MethodDelete, "", uuid.New(), recipientParams(uuid.New(), uuid.New())))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, gotReason)

	rec = httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, adminRequest(http.MethodDelete, `{"reason":"wrong size"}`, uuid.New(), recipientParams(uuid.New(), uuid.New())))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "wrong size", gotReason)
}

func TestCancelRequiresIdentityAndRecipient(t *testing.T) {
	rec := httptest.NewRecorder()
	Cancel(&stubShipping{}, nil).ServeHTTP(rec, adminRequest(http.MethodDelete, "", uuid.Nil, recipientParams(uuid.New(), uuid.New())))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	Cancel(&stubShipping{}, nil).ServeHTTP(rec, adminRequest(http.MethodDelete, "", uuid.New(), map[string]string{"orderId": uuid.NewString()}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
