package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
	"github.com/printz/fulfillment-backend/pkg/pagination"
	"github.com/printz/fulfillment-backend/pkg/payos"
	"github.com/printz/fulfillment-backend/pkg/types"
)

const orderNumberAttempts = 5

// DefaultShippingFee is charged per print order when none is configured.
var DefaultShippingFee = decimal.NewFromInt(30000)

// Service defines print order operations for customers and the back office.
type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.PrintOrder, error)
	Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.PrintOrder, error)
	List(ctx context.Context, customerID uuid.UUID, params ListParams) (*ListResult, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*models.PrintOrder, error)
	AdminList(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateStatus(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input StatusInput) (*models.PrintOrder, error)
	CreatePaymentLink(ctx context.Context, customerID, orderID uuid.UUID) (*PaymentLinkResult, error)
	MarkPaidByOrderCode(ctx context.Context, orderCode, amount int64) error
}

type ServiceParams struct {
	Repo        Repository
	Quoter      Quoter
	Outbox      outbox.Emitter
	Audit       auditlog.Recorder
	TxRunner    txRunner
	Payments    paymentLinker
	ReturnURL   string
	CancelURL   string
	ShippingFee decimal.Decimal
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	repo        Repository
	quoter      Quoter
	outbox      outbox.Emitter
	audit       auditlog.Recorder
	tx          txRunner
	payments    paymentLinker
	returnURL   string
	cancelURL   string
	shippingFee decimal.Decimal
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("print order repository required")
	case params.Quoter == nil:
		return nil, fmt.Errorf("pricing quoter required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	fee := params.ShippingFee
	if fee.IsZero() {
		fee = DefaultShippingFee
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		quoter:      params.Quoter,
		outbox:      params.Outbox,
		audit:       params.Audit,
		tx:          params.TxRunner,
		payments:    params.Payments,
		returnURL:   params.ReturnURL,
		cancelURL:   params.CancelURL,
		shippingFee: fee,
		logg:        logg,
		now:         now,
	}, nil
}

// Create prices every item with the active pricing formula for its product
// type; client supplied prices are never trusted.
func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.PrintOrder, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	items := make([]models.PrintOrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for i, in := range input.Items {
		description := strings.TrimSpace(in.Description)
		if description == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item description is required").
				WithDetails(map[string]any{"index": i})
		}
		quote, err := s.quoter.Calculate(ctx, in.Specification)
		if err != nil {
			return nil, err
		}
		lineTotal := decimal.NewFromFloat(quote.SellingPrice)
		quantity := in.Specification.Quantity
		items = append(items, models.PrintOrderItem{
			ProductType: strings.TrimSpace(in.Specification.ProductType),
			Description: description,
			Quantity:    quantity,
			UnitPrice:   lineTotal.Div(decimal.NewFromInt(int64(quantity))).Round(2),
			LineTotal:   lineTotal,
			Specification: types.NewJSON(map[string]any{
				"size":             in.Specification.Size,
				"paperType":        in.Specification.PaperType,
				"printSides":       in.Specification.PrintSides,
				"colors":           in.Specification.Colors,
				"finishingOptions": in.Specification.FinishingOptions,
				"formulaId":        quote.FormulaID.String(),
			}),
		})
		subtotal = subtotal.Add(lineTotal)
	}

	now := s.now().UTC()
	order := &models.PrintOrder{
		CustomerID:    customerID,
		Status:        enums.PrintOrderPendingPayment,
		PaymentStatus: enums.PaymentPending,
		Subtotal:      subtotal,
		ShippingFee:   s.shippingFee,
		Total:         subtotal.Add(s.shippingFee),
		Notes:         input.Notes,
		Items:         items,
	}

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		lastErr = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			number, err := nextOrderNumber(ctx, repo, now, attempt)
			if err != nil {
				return err
			}
			order.OrderNumber = number
			order.PaymentOrderCode = payos.NewOrderCode(s.now())
			return repo.Create(ctx, order)
		})
		if lastErr == nil {
			break
		}
		if !db.IsUniqueViolation(lastErr, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "create print order")
		}
		order.ID = uuid.Nil
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
		}
	}
	if lastErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate order number")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
	})
	s.logg.Info(logCtx, "print order created")
	return s.AdminGet(ctx, order.ID)
}

// nextOrderNumber follows PO{YYYYMM}{5 digits}, counting this month's orders.
func nextOrderNumber(ctx context.Context, repo Repository, now time.Time, attempt int) (string, error) {
	prefix := "PO" + now.Format("200601")
	count, err := repo.CountNumbersWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1+int64(attempt)), nil
}

func (s *service) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.PrintOrder, error) {
	order, err := s.AdminGet(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.NotFound("print order", orderID)
	}
	return order, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.PrintOrder, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("print order", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load print order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params ListParams) (*ListResult, error) {
	return s.list(ctx, &customerID, params)
}

func (s *service) AdminList(ctx context.Context, params ListParams) (*ListResult, error) {
	return s.list(ctx, nil, params)
}

func (s *service) list(ctx context.Context, customerID *uuid.UUID, params ListParams) (*ListResult, error) {
	filter := ListFilter{CustomerID: customerID, Query: params.Query}
	if params.Status != "" {
		status, err := enums.ParsePrintOrderStatus(strings.ToLower(params.Status))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidPrintOrderStatuses)})
		}
		filter.Status = &status
	}
	rows, err := s.repo.List(ctx, filter, params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list print orders")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(o models.PrintOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page, NextCursor: next}, nil
}

// UpdateStatus moves an order along its lifecycle. Payment is the only way
// into paid_waiting_for_printer.
func (s *service) UpdateStatus(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input StatusInput) (*models.PrintOrder, error) {
	next, err := enums.ParsePrintOrderStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]any{"allowed": enums.Values(enums.ValidPrintOrderStatuses)})
	}
	if next == enums.PrintOrderPaidWaitingForPrinter {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders become paid through payment confirmation")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Lock(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("print order", orderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load print order")
		}
		previous := order.Status
		if !previous.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"from": previous, "to": next})
		}
		order.Status = next
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save print order")
		}
		details := map[string]any{"from": previous, "to": next, "orderNumber": order.OrderNumber}
		if note := strings.TrimSpace(input.Note); note != "" {
			details["note"] = note
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionPrintOrderStatus,
			ResourceType: string(enums.AggregatePrintOrder),
			ResourceID:   order.ID.String(),
			Details:      details,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

func (s *service) CreatePaymentLink(ctx context.Context, customerID, orderID uuid.UUID) (*PaymentLinkResult, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}
	order, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.PrintOrderPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	items := make([]payos.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payos.Item{
			Name:     item.Description,
			Quantity: item.Quantity,
			Price:    item.UnitPrice.Ceil().IntPart(),
		})
	}
	link, err := s.payments.CreatePaymentLink(ctx, payos.PaymentRequest{
		OrderCode:   order.PaymentOrderCode,
		Amount:      order.Total.Ceil().IntPart(),
		Description: "DH " + order.OrderNumber,
		Items:       items,
		ReturnURL:   s.returnURL + "?printOrderId=" + order.ID.String(),
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment link")
	}
	return &PaymentLinkResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderCode:   order.PaymentOrderCode,
		CheckoutURL: link.CheckoutURL,
	}, nil
}

// MarkPaidByOrderCode settles an order from a PayOS confirmation. Unknown
// codes are NotFound so the webhook can try other order kinds; repeated
// deliveries are no-ops.
func (s *service) MarkPaidByOrderCode(ctx context.Context, orderCode, amount int64) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByPaymentCode(ctx, orderCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("print order", orderCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load print order")
		}
		if order.PaymentStatus == enums.PaymentPaid {
			return nil
		}
		if order.Status == enums.PrintOrderCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment received for a cancelled order").
				WithDetails(map[string]any{"orderNumber": order.OrderNumber})
		}
		if amount > 0 && decimal.NewFromInt(amount).LessThan(order.Total.Floor()) {
			return pkgerrors.New(pkgerrors.CodeValidation, "paid amount is below the order total").
				WithDetails(map[string]any{"amount": amount, "total": order.Total.String()})
		}
		now := s.now().UTC()
		order.PaymentStatus = enums.PaymentPaid
		order.Status = enums.PrintOrderPaidWaitingForPrinter
		order.PaidAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save print order")
		}
		logCtx := s.logg.WithField(s.logg.WithOrder(ctx, "print", order.ID.String()), "order_code", orderCode)
		s.logg.Info(logCtx, "print order paid")
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPrintOrderPaid,
			AggregateType: enums.AggregatePrintOrder,
			AggregateID:   order.ID,
			Data: payloads.PrintOrderPaidEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				Amount:      order.Total,
				PaidAt:      now,
			},
		})
	})
}
