package kitting

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
	internalkitting "github.com/printz/fulfillment-backend/internal/kitting"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type stubKitting struct {
	internalkitting.Service
	queue    func(ctx context.Context, params internalkitting.QueueParams) ([]models.SwagOrder, error)
	scan     func(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalkitting.ScanInput) (*internalkitting.ScanResult, error)
	complete func(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error)
	validate func(ctx context.Context, orderID uuid.UUID) (*internalkitting.Validation, error)
}

func (s *stubKitting) Queue(ctx context.Context, params internalkitting.QueueParams) ([]models.SwagOrder, error) {
	return s.queue(ctx, params)
}

func (s *stubKitting) Scan(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalkitting.ScanInput) (*internalkitting.ScanResult, error) {
	return s.scan(ctx, actor, orderID, input)
}

func (s *stubKitting) Complete(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error) {
	return s.complete(ctx, actor, orderID)
}

func (s *stubKitting) Validate(ctx context.Context, orderID uuid.UUID) (*internalkitting.Validation, error) {
	return s.validate(ctx, orderID)
}

func staffRequest(method, target, body string, staffID uuid.UUID, orderID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rc := chi.NewRouteContext()
	if orderID != "" {
		rc.URLParams.Add("orderId", orderID)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if staffID != uuid.Nil {
		ctx = middleware.WithIdentity(ctx, staffID, enums.RoleStaff)
	}
	return req.WithContext(ctx)
}

func TestQueuePassesFiltersAndCounts(t *testing.T) {
	svc := &stubKitting{
		queue: func(_ context.Context, params internalkitting.QueueParams) ([]models.SwagOrder, error) {
			require.Equal(t, "in_progress", params.Status)
			require.Equal(t, "oldest", params.SortBy)
			require.Equal(t, 20, params.Limit)
			return []models.SwagOrder{{OrderNumber: "SW2026010001"}, {OrderNumber: "SW2026010002"}}, nil
		},
	}
	rec := httptest.NewRecorder()
	Queue(svc, nil).ServeHTTP(rec, staffRequest(http.MethodGet, "/api/admin/kitting?status=in_progress&sortBy=oldest&limit=20", "", uuid.New(), ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 2, payload.Data.Count)
}

func TestQueueRejectsOutOfRangeLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	Queue(&stubKitting{}, nil).ServeHTTP(rec, staffRequest(http.MethodGet, "/api/admin/kitting?limit=500", "", uuid.New(), ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanForwardsActorAndBody(t *testing.T) {
	staffID, orderID := uuid.New(), uuid.New()
	svc := &stubKitting{
		scan: func(_ context.Context, actor auditlog.Actor, id uuid.UUID, input internalkitting.ScanInput) (*internalkitting.ScanResult, error) {
			require.Equal(t, staffID, actor.UserID)
			require.Equal(t, orderID, id)
			require.Equal(t, "mug-01", input.SKU)
			return &internalkitting.ScanResult{SKU: "MUG-01", ExpectedQuantity: 6, ScannedQuantity: 1}, nil
		},
	}
	rec := httptest.NewRecorder()
	Scan(svc, nil).ServeHTTP(rec, staffRequest(http.MethodPost, "/", `{"sku":"mug-01"}`, staffID, orderID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"expectedQuantity":6`)
}

func TestScanValidatesBodyBeforeCallingService(t *testing.T) {
	called := false
	svc := &stubKitting{
		scan: func(context.Context, auditlog.Actor, uuid.UUID, internalkitting.ScanInput) (*internalkitting.ScanResult, error) {
			called = true
			return nil, nil
		},
	}
	for _, body := range []string{`{}`, `{"sku":"A","extra":1}`, `not json`} {
		rec := httptest.NewRecorder()
		Scan(svc, nil).ServeHTTP(rec, staffRequest(http.MethodPost, "/", body, uuid.New(), uuid.NewString()))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.False(t, called)
}

func TestCompleteRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	Complete(&stubKitting{}, nil).ServeHTTP(rec, staffRequest(http.MethodPost, "/", "", uuid.Nil, uuid.NewString()))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteSurfacesStockShortage(t *testing.T) {
	svc := &stubKitting{
		complete: func(context.Context, auditlog.Actor, uuid.UUID) (*models.SwagOrder, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{"sku": "MUG-01", "shortage": 2})
		},
	}
	rec := httptest.NewRecorder()
	Complete(svc, nil).ServeHTTP(rec, staffRequest(http.MethodPost, "/", "", uuid.New(), uuid.NewString()))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "MUG-01")
}

func TestValidateRejectsBadOrderID(t *testing.T) {
	rec := httptest.NewRecorder()
	Validate(&stubKitting{}, nil).ServeHTTP(rec, staffRequest(http.MethodGet, "/", "", uuid.New(), "order-1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlersReportMissingService(t *testing.T) {
	rec := httptest.NewRecorder()
	Checklist(nil, nil).ServeHTTP(rec, staffRequest(http.MethodGet, "/", "", uuid.New(), uuid.NewString()))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
