package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/pricing"
	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/payos"
)

type stubPayments struct {
	last payos.PaymentRequest
}

func (s *stubPayments) CreatePaymentLink(_ context.Context, req payos.PaymentRequest) (*payos.PaymentLink, error) {
	s.last = req
	return &payos.PaymentLink{OrderCode: req.OrderCode, Amount: req.Amount, CheckoutURL: "https://pay.payos.vn/web/po"}, nil
}

type fixture struct {
	svc      Service
	conn     *gorm.DB
	payments *stubPayments
	customer *models.User
	admin    auditlog.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.OpenClient(t, "orders")
	conn := client.DB()
	audit, err := auditlog.NewService(auditlog.NewRepository(conn), logger.Nop())
	require.NoError(t, err)
	quotes, err := pricing.NewService(pricing.NewRepository(conn), nil)
	require.NoError(t, err)
	_, err = quotes.Create(context.Background(), pricing.FormulaInput{
		ProductType:   "business-card",
		Name:          "Business card",
		Formula:       "basePrice * quantity",
		QuantityTiers: []models.QuantityTier{{MinQuantity: 1, MaxQuantity: 1000, PricePerUnit: 2000}},
	})
	require.NoError(t, err)

	payments := &stubPayments{}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Quoter:    quotes,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Audit:     audit,
		TxRunner:  client,
		Payments:  payments,
		ReturnURL: "https://printz.vn/orders/success",
	})
	require.NoError(t, err)
	admin := dbtest.User(t, conn, enums.RoleAdmin)
	return &fixture{
		svc:      svc,
		conn:     conn,
		payments: payments,
		customer: dbtest.User(t, conn, enums.RoleCustomer),
		admin:    auditlog.Actor{UserID: admin.ID, Role: enums.RoleAdmin},
	}
}

func cards(quantity int) CreateInput {
	return CreateInput{Items: []ItemInput{{
		Description: "Danh thiep 2 mat",
		Specification: pricing.Specification{
			ProductType: "business-card",
			Size:        pricing.Size{Width: 90, Height: 54, Unit: "mm"},
			PaperType:   "couche",
			Quantity:    quantity,
			PrintSides:  "single",
			Colors:      1,
		},
	}}}
}

func TestCreatePricesItemsServerSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, f.customer.ID, cards(100))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(order.OrderNumber, "PO"))
	require.Equal(t, enums.PrintOrderPendingPayment, order.Status)
	require.Equal(t, enums.PaymentPending, order.PaymentStatus)
	require.NotZero(t, order.PaymentOrderCode)
	require.Len(t, order.Items, 1)
	require.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(2000)))
	require.True(t, order.Subtotal.Equal(decimal.NewFromInt(200000)))
	require.True(t, order.Total.Equal(decimal.NewFromInt(230000)))

	second, err := f.svc.Create(ctx, f.customer.ID, cards(10))
	require.NoError(t, err)
	require.NotEqual(t, order.OrderNumber, second.OrderNumber)
	require.NotEqual(t, order.PaymentOrderCode, second.PaymentOrderCode)

	missing := cards(10)
	missing.Items[0].Specification.ProductType = "poster"
	_, err = f.svc.Create(ctx, f.customer.ID, missing)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(ctx, f.customer.ID, CreateInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCustomersOnlySeeTheirOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, f.customer.ID, cards(10))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, uuid.New(), order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	mine, err := f.svc.List(ctx, f.customer.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, mine.Orders, 1)
	others, err := f.svc.List(ctx, uuid.New(), ListParams{})
	require.NoError(t, err)
	require.Empty(t, others.Orders)

	_, err = f.svc.AdminList(ctx, ListParams{Status: "lost"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkPaidByOrderCodeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, f.customer.ID, cards(100))
	require.NoError(t, err)

	link, err := f.svc.CreatePaymentLink(ctx, f.customer.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.PaymentOrderCode, link.OrderCode)
	require.EqualValues(t, 230000, f.payments.last.Amount)

	err = f.svc.MarkPaidByOrderCode(ctx, order.PaymentOrderCode, 1000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, f.svc.MarkPaidByOrderCode(ctx, order.PaymentOrderCode, 230000))
	require.NoError(t, f.svc.MarkPaidByOrderCode(ctx, order.PaymentOrderCode, 230000))

	paid, err := f.svc.AdminGet(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PrintOrderPaidWaitingForPrinter, paid.Status)
	require.Equal(t, enums.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPrintOrderPaid).Count(&events).Error)
	require.EqualValues(t, 1, events)

	_, err = f.svc.CreatePaymentLink(ctx, f.customer.ID, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	err = f.svc.MarkPaidByOrderCode(ctx, 42, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, f.customer.ID, cards(10))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: "paid_waiting_for_printer"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: "printing"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: "bogus"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, f.svc.MarkPaidByOrderCode(ctx, order.PaymentOrderCode, 0))
	for _, next := range []string{"printing", "shipping", "completed"} {
		updated, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: next, Note: "ok"})
		require.NoError(t, err)
		require.Equal(t, next, string(updated.Status))
	}
	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: "cancelled"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var audits int64
	require.NoError(t, f.conn.Model(&models.AuditLog{}).
		Where("action = ? AND resource_id = ?", auditlog.ActionPrintOrderStatus, order.ID.String()).
		Count(&audits).Error)
	require.EqualValues(t, 3, audits)
}

func TestPaymentForCancelledOrderConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, f.customer.ID, cards(10))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, StatusInput{Status: "cancelled"})
	require.NoError(t, err)
	err = f.svc.MarkPaidByOrderCode(ctx, order.PaymentOrderCode, 50000)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
