package swagorders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/api/middleware"
	"github.com/printz/fulfillment-backend/internal/auditlog"
	internalswag "github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type stubSwagOrders struct {
	internalswag.Service
	create        func(ctx context.Context, customerID uuid.UUID, input internalswag.CreateInput) (*models.SwagOrder, error)
	list          func(ctx context.Context, customerID uuid.UUID, params internalswag.ListParams) (*internalswag.ListResult, error)
	addRecipients func(ctx context.Context, customerID, orderID uuid.UUID, recipients []internalswag.RecipientInput) (*models.SwagOrder, error)
	cancel        func(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, reason string) (*models.SwagOrder, error)
	paymentLink   func(ctx context.Context, customerID, orderID uuid.UUID) (*internalswag.PaymentLinkResult, error)
	production    func(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalswag.ProductionInput) (*models.SwagOrder, error)
}

func (s *stubSwagOrders) Create(ctx context.Context, customerID uuid.UUID, input internalswag.CreateInput) (*models.SwagOrder, error) {
	return s.create(ctx, customerID, input)
}

func (s *stubSwagOrders) List(ctx context.Context, customerID uuid.UUID, params internalswag.ListParams) (*internalswag.ListResult, error) {
	return s.list(ctx, customerID, params)
}

func (s *stubSwagOrders) AddRecipients(ctx context.Context, customerID, orderID uuid.UUID, recipients []internalswag.RecipientInput) (*models.SwagOrder, error) {
	return s.addRecipients(ctx, customerID, orderID, recipients)
}

func (s *stubSwagOrders) Cancel(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, reason string) (*models.SwagOrder, error) {
	return s.cancel(ctx, actor, orderID, reason)
}

func (s *stubSwagOrders) CreatePaymentLink(ctx context.Context, customerID, orderID uuid.UUID) (*internalswag.PaymentLinkResult, error) {
	return s.paymentLink(ctx, customerID, orderID)
}

func (s *stubSwagOrders) UpdateProduction(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input internalswag.ProductionInput) (*models.SwagOrder, error) {
	return s.production(ctx, actor, orderID, input)
}

func newRequest(method, target, body string, userID uuid.UUID, role enums.UserRole, orderID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rc := chi.NewRouteContext()
	if orderID != "" {
		rc.URLParams.Add("id", orderID)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if userID != uuid.Nil {
		ctx = middleware.WithIdentity(ctx, userID, role)
	}
	return req.WithContext(ctx)
}

const recipientJSON = `{"name":"Lan","phone":"0912345678","address":{"street":"12 Ly Thuong Kiet","district":"Quan 10","city":"Ho Chi Minh"}}`

func TestCreateUsesCallerAsCustomer(t *testing.T) {
	customerID, packID := uuid.New(), uuid.New()
	svc := &stubSwagOrders{
		create: func(_ context.Context, gotCustomer uuid.UUID, input internalswag.CreateInput) (*models.SwagOrder, error) {
			require.Equal(t, customerID, gotCustomer)
			require.Equal(t, packID, input.SwagPackID)
			require.Len(t, input.Recipients, 1)
			require.Equal(t, "Lan", input.Recipients[0].Name)
			require.True(t, input.Discount.IsZero(), "discount is never read from the body")
			return &models.SwagOrder{OrderNumber: "SW2026010001", Status: enums.SwagOrderPendingPayment}, nil
		},
	}
	body := `{"swagPackId":"` + packID.String() + `","recipients":[` + recipientJSON + `]}`
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/api/swag-orders", body, customerID, enums.RoleCustomer, ""))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "SW2026010001")
}

func TestCreateRejectsInvalidRecipients(t *testing.T) {
	svc := &stubSwagOrders{
		create: func(context.Context, uuid.UUID, internalswag.CreateInput) (*models.SwagOrder, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	packID := uuid.NewString()
	for name, body := range map[string]string{
		"no recipients": `{"swagPackId":"` + packID + `","recipients":[]}`,
		"no pack":       `{"recipients":[` + recipientJSON + `]}`,
		"bad phone":     `{"swagPackId":"` + packID + `","recipients":[{"name":"Lan","phone":"12345"}]}`,
		"no name":       `{"swagPackId":"` + packID + `","recipients":[{"phone":"0912345678"}]}`,
	} {
		rec := httptest.NewRecorder()
		Create(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", body, uuid.New(), enums.RoleCustomer, ""))
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	Create(&stubSwagOrders{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{}`, uuid.Nil, "", ""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListParsesFiltersAndPagination(t *testing.T) {
	svc := &stubSwagOrders{
		list: func(_ context.Context, _ uuid.UUID, params internalswag.ListParams) (*internalswag.ListResult, error) {
			require.Equal(t, "shipped", params.Status)
			require.Equal(t, "onboarding", params.Query)
			require.Equal(t, 5, params.Limit)
			require.Equal(t, "abc", params.Cursor)
			return &internalswag.ListResult{NextCursor: "next"}, nil
		},
	}
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/api/swag-orders?status=shipped&q=+onboarding+&limit=5&cursor=abc", "", uuid.New(), enums.RoleCustomer, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data internalswag.ListResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "next", payload.Data.NextCursor)
}

func TestAddRecipientsCapsBatch(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"recipients":[`)
	for i := 0; i < 1001; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(recipientJSON)
	}
	b.WriteString(`]}`)

	rec := httptest.NewRecorder()
	AddRecipients(&stubSwagOrders{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", b.String(), uuid.New(), enums.RoleCustomer, uuid.NewString()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRecipientsSurfacesLockedOrder(t *testing.T) {
	svc := &stubSwagOrders{
		addRecipients: func(context.Context, uuid.UUID, uuid.UUID, []internalswag.RecipientInput) (*models.SwagOrder, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "recipients can only change before payment")
		},
	}
	rec := httptest.NewRecorder()
	AddRecipients(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"recipients":[`+recipientJSON+`]}`, uuid.New(), enums.RoleCustomer, uuid.NewString()))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCancelForwardsActorAndReason(t *testing.T) {
	adminID, orderID := uuid.New(), uuid.New()
	svc := &stubSwagOrders{
		cancel: func(_ context.Context, actor auditlog.Actor, id uuid.UUID, reason string) (*models.SwagOrder, error) {
			require.Equal(t, adminID, actor.UserID)
			require.Equal(t, enums.RoleAdmin, actor.Role)
			require.Equal(t, orderID, id)
			require.Equal(t, "duplicate order", reason)
			return &models.SwagOrder{Status: enums.SwagOrderCancelled}, nil
		},
	}
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"reason":"duplicate order"}`, adminID, enums.RoleAdmin, orderID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentLinkReturnsCreated(t *testing.T) {
	customerID, orderID := uuid.New(), uuid.New()
	svc := &stubSwagOrders{
		paymentLink: func(_ context.Context, gotCustomer, id uuid.UUID) (*internalswag.PaymentLinkResult, error) {
			require.Equal(t, customerID, gotCustomer)
			return &internalswag.PaymentLinkResult{OrderID: id, OrderCode: 1736400000123, CheckoutURL: "https://pay.payos.vn/web/abc"}, nil
		},
	}
	rec := httptest.NewRecorder()
	PaymentLink(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/", "", customerID, enums.RoleCustomer, orderID.String()))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "pay.payos.vn")
}

func TestUpdateProductionRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	UpdateProduction(&stubSwagOrders{}, nil).ServeHTTP(rec, newRequest(http.MethodPatch, "/", `{"kittingStatus":"completed"}`, uuid.New(), enums.RoleStaff, uuid.NewString()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProductionPassesPartialInput(t *testing.T) {
	svc := &stubSwagOrders{
		production: func(_ context.Context, _ auditlog.Actor, _ uuid.UUID, input internalswag.ProductionInput) (*models.SwagOrder, error) {
			require.Nil(t, input.Status)
			require.NotNil(t, input.QCRequired)
			require.True(t, *input.QCRequired)
			return &models.SwagOrder{}, nil
		},
	}
	rec := httptest.NewRecorder()
	UpdateProduction(svc, nil).ServeHTTP(rec, newRequest(http.MethodPatch, "/", `{"qcRequired":true}`, uuid.New(), enums.RoleStaff, uuid.NewString()))
	require.Equal(t, http.StatusOK, rec.Code)
}
