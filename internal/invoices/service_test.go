package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/orders"
	"github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/pkg/db/dbtest"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
)

var issuedAt = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   Service
	conn  *gorm.DB
	admin auditlog.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.OpenClient(t, "invoices")
	conn := client.DB()
	audit, err := auditlog.NewService(auditlog.NewRepository(conn), logger.Nop())
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(conn),
		SwagOrders:  swagorders.NewRepository(conn),
		PrintOrders: orders.NewRepository(conn),
		Outbox:      outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Audit:       audit,
		TxRunner:    client,
		Now:         func() time.Time { return issuedAt },
	})
	require.NoError(t, err)
	admin := dbtest.User(t, conn, enums.RoleAdmin)
	return &fixture{svc: svc, conn: conn, admin: auditlog.Actor{UserID: admin.ID, Role: enums.RoleAdmin}}
}

func (f *fixture) paidSwagOrder(t *testing.T) *models.SwagOrder {
	t.Helper()
	customer := dbtest.User(t, f.conn, enums.RoleCustomer)
	tee := dbtest.Variant(t, f.conn, "TEE-"+uuid.NewString()[:6], 150000, 50)
	mug := dbtest.Variant(t, f.conn, "MUG-"+uuid.NewString()[:6], 90000, 50)
	pack := dbtest.Pack(t, f.conn, customer.ID, map[*models.SkuVariant]int{tee: 1, mug: 2})
	order := dbtest.SwagOrder(t, f.conn, pack, 3, enums.SwagOrderPaid, models.SwagOrderProduction{})
	paidAt := issuedAt.Add(-time.Hour)
	order.Pricing = swagorders.Quote(decimal.NewFromInt(330000), 3, enums.ShippingStandard, decimal.NewFromInt(10000), swagorders.DefaultFees())
	order.PaidAt = &paidAt
	require.NoError(t, f.conn.Omit("Recipients", "SwagPack").Save(order).Error)
	return order
}

func (f *fixture) printOrder(t *testing.T, status enums.PrintOrderStatus) *models.PrintOrder {
	t.Helper()
	customer := dbtest.User(t, f.conn, enums.RoleCustomer)
	order := &models.PrintOrder{
		OrderNumber:      "PO" + uuid.NewString()[:8],
		CustomerID:       customer.ID,
		Status:           status,
		PaymentStatus:    enums.PaymentPending,
		PaymentOrderCode: time.Now().UnixNano(),
		Subtotal:         decimal.NewFromInt(200000),
		ShippingFee:      decimal.NewFromInt(30000),
		Total:            decimal.NewFromInt(230000),
		Items: []models.PrintOrderItem{{
			ProductType: "business-card",
			Description: "Danh thiep",
			Quantity:    100,
			UnitPrice:   decimal.NewFromInt(2000),
			LineTotal:   decimal.NewFromInt(200000),
		}},
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func sumLines(lines []models.InvoiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func TestIssueForPaidSwagOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.paidSwagOrder(t)

	invoice, err := f.svc.IssueForSource(ctx, enums.InvoiceSourceSwagOrder, order.ID)
	require.NoError(t, err)
	require.Equal(t, "INV-20260110-000001", invoice.InvoiceNumber)
	require.Equal(t, enums.InvoicePaid, invoice.Status)
	require.NotNil(t, invoice.PaidAt)
	require.True(t, invoice.Total.Equal(order.Pricing.Total))
	require.True(t, invoice.Tax.Equal(order.Pricing.Tax))
	require.True(t, sumLines(invoice.Lines).Equal(invoice.Subtotal), "lines %s subtotal %s", sumLines(invoice.Lines), invoice.Subtotal)

	again, err := f.svc.IssueForSource(ctx, enums.InvoiceSourceSwagOrder, order.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.ID, again.ID)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInvoiceIssued).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestIssueForPrintOrderNumbersSequentially(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssueForSource(ctx, enums.InvoiceSourcePrintOrder, f.printOrder(t, enums.PrintOrderPendingPayment).ID)
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceIssued, first.Status)
	require.Nil(t, first.PaidAt)
	require.Len(t, first.Lines, 2)
	require.True(t, sumLines(first.Lines).Equal(first.Total))

	second, err := f.svc.IssueForSource(ctx, enums.InvoiceSourcePrintOrder, f.printOrder(t, enums.PrintOrderPrinting).ID)
	require.NoError(t, err)
	require.Equal(t, "INV-20260110-000002", second.InvoiceNumber)

	listed, err := f.svc.List(ctx, ListParams{Status: "issued", SourceType: "print_order"})
	require.NoError(t, err)
	require.Len(t, listed.Invoices, 2)
	_, err = f.svc.List(ctx, ListParams{Status: "draft"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestIssueRejectsCancelledOrUnknownSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssueForSource(ctx, enums.InvoiceSourcePrintOrder, f.printOrder(t, enums.PrintOrderCancelled).ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.IssueForSource(ctx, enums.InvoiceSourceSwagOrder, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.IssueForSource(ctx, enums.InvoiceSourceType("quote"), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVoidRecordsAuditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice, err := f.svc.IssueForSource(ctx, enums.InvoiceSourcePrintOrder, f.printOrder(t, enums.PrintOrderPendingPayment).ID)
	require.NoError(t, err)

	_, err = f.svc.Void(ctx, f.admin, invoice.ID, " ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	voided, err := f.svc.Void(ctx, f.admin, invoice.ID, "customer changed billing details")
	require.NoError(t, err)
	require.Equal(t, enums.InvoiceVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	require.Equal(t, "customer changed billing details", *voided.VoidReason)

	_, err = f.svc.Void(ctx, f.admin, invoice.ID, "again")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Void(ctx, f.admin, uuid.New(), "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var audits int64
	require.NoError(t, f.conn.Model(&models.AuditLog{}).Where("action = ?", auditlog.ActionInvoiceVoided).Count(&audits).Error)
	require.EqualValues(t, 1, audits)
}
