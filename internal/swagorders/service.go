package swagorders

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
	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/internal/products"
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

const (
	orderNumberAttempts = 5
	reserveSavepoint    = "swag_order_reserve"
)

type packLookup interface {
	FindOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.SwagPack, error)
}

type variantLookup interface {
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]products.VariantWithProduct, error)
}

type paymentLinker interface {
	CreatePaymentLink(ctx context.Context, req payos.PaymentRequest) (*payos.PaymentLink, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns swag order ingestion and the order lifecycle up to kitting.
type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.SwagOrder, error)
	Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.SwagOrder, error)
	List(ctx context.Context, customerID uuid.UUID, params ListParams) (*ListResult, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*models.SwagOrder, error)
	AdminList(ctx context.Context, params ListParams) (*ListResult, error)
	AddRecipients(ctx context.Context, customerID, orderID uuid.UUID, recipients []RecipientInput) (*models.SwagOrder, error)
	UpdateRecipient(ctx context.Context, customerID, orderID, recipientID uuid.UUID, input RecipientInput) (*models.SwagOrder, error)
	RemoveRecipient(ctx context.Context, customerID, orderID, recipientID uuid.UUID) (*models.SwagOrder, error)
	Cancel(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, reason string) (*models.SwagOrder, error)
	UpdateProduction(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input ProductionInput) (*models.SwagOrder, error)
	CreatePaymentLink(ctx context.Context, customerID, orderID uuid.UUID) (*PaymentLinkResult, error)
	MarkPaid(ctx context.Context, orderCode int64, amount int64) (*models.SwagOrder, error)
}

type ServiceParams struct {
	Repo      *Repository
	Packs     packLookup
	Variants  variantLookup
	Inventory inventory.Ledger
	Outbox    outbox.Emitter
	Audit     auditlog.Recorder
	TxRunner  txRunner
	Payments  paymentLinker
	ReturnURL string
	CancelURL string
	Fees      Fees
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      *Repository
	packs     packLookup
	variants  variantLookup
	inventory inventory.Ledger
	outbox    outbox.Emitter
	audit     auditlog.Recorder
	tx        txRunner
	payments  paymentLinker
	returnURL string
	cancelURL string
	fees      Fees
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("swag order repository required")
	case params.Packs == nil:
		return nil, fmt.Errorf("swag pack lookup required")
	case params.Variants == nil:
		return nil, fmt.Errorf("variant lookup required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	fees := params.Fees
	if fees.Shipping == nil {
		fees = DefaultFees()
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
		repo:      params.Repo,
		packs:     params.Packs,
		variants:  params.Variants,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		audit:     params.Audit,
		tx:        params.TxRunner,
		payments:  params.Payments,
		returnURL: params.ReturnURL,
		cancelURL: params.CancelURL,
		fees:      fees,
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateInput) (*models.SwagOrder, error) {
	method := enums.ShippingStandard
	if m := strings.TrimSpace(input.ShippingMethod); m != "" {
		parsed, err := enums.ParseShippingMethod(strings.ToLower(m))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shippingMethod").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidShippingMethods)})
		}
		method = parsed
	}
	if len(input.Recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient is required")
	}
	recipients, err := buildRecipients(input.Recipients)
	if err != nil {
		return nil, err
	}

	pack, err := s.packs.FindOwned(ctx, input.SwagPackID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag pack", input.SwagPackID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag pack")
	}
	if pack.Status != enums.SwagPackActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "swag pack is not active")
	}
	snapshot, packPrice, err := s.snapshot(ctx, pack)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Send swag: " + pack.Name
	}
	now := s.now().UTC()
	order := &models.SwagOrder{
		CustomerID:        customerID,
		SwagPackID:        pack.ID,
		Name:              name,
		ShippingMethod:    method,
		PaymentStatus:     enums.PaymentPending,
		TotalRecipients:   len(recipients),
		Pricing:           Quote(packPrice, len(recipients), method, input.Discount, s.fees),
		PackSnapshot:      types.NewJSON(snapshot),
		ScheduledSendDate: input.ScheduledSendDate,
		Recipients:        recipients,
		Production: models.SwagOrderProduction{
			Status:        enums.ProductionPending,
			QCStatus:      enums.QCPending,
			KittingStatus: enums.KittingPending,
		},
	}
	order.Status = enums.SwagOrderPendingInfo
	order.Status = RollupStatus(order.Status, recipients)
	order.Stats = Stats(recipients)

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		lastErr = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			number, err := s.nextOrderNumber(ctx, repo, now, attempt)
			if err != nil {
				return err
			}
			order.OrderNumber = number
			code := payos.NewOrderCode(s.now())
			order.PaymentOrderCode = &code
			if err := repo.Create(ctx, order); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSwagOrderCreated,
				AggregateType: enums.AggregateSwagOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: customerID, Role: string(enums.RoleCustomer)},
				Data: payloads.SwagOrderCreatedEvent{
					OrderID:         order.ID,
					OrderNumber:     order.OrderNumber,
					CustomerID:      customerID,
					TotalRecipients: order.TotalRecipients,
					Total:           order.Pricing.Total,
				},
			})
		})
		if lastErr == nil {
			break
		}
		if !db.IsUniqueViolation(lastErr, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "create swag order")
		}
		order.ID = uuid.Nil
		for i := range order.Recipients {
			order.Recipients[i].ID = uuid.Nil
		}
	}
	if lastErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate order number")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"recipients":   order.TotalRecipients,
	})
	s.logg.Info(logCtx, "swag order created")
	return s.AdminGet(ctx, order.ID)
}

// nextOrderNumber follows SW{YYYYMM}{5 digits}, counting this month's orders.
func (s *service) nextOrderNumber(ctx context.Context, repo *Repository, now time.Time, attempt int) (string, error) {
	prefix := "SW" + now.Format("200601")
	count, err := repo.CountNumbersWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1+int64(attempt)), nil
}

func (s *service) snapshot(ctx context.Context, pack *models.SwagPack) ([]models.PackSnapshotItem, decimal.Decimal, error) {
	if len(pack.Items) == 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "swag pack has no items")
	}
	ids := make([]uuid.UUID, 0, len(pack.Items))
	for _, item := range pack.Items {
		ids = append(ids, item.SkuVariantID)
	}
	variants, err := s.variants.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	total := decimal.Zero
	items := make([]models.PackSnapshotItem, 0, len(pack.Items))
	for _, item := range pack.Items {
		variant, ok := variants[item.SkuVariantID]
		if !ok || !variant.Sellable() {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "swag pack contains an unavailable item").
				WithDetails(map[string]any{"skuVariantId": item.SkuVariantID.String()})
		}
		total = total.Add(variant.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, models.PackSnapshotItem{
			SkuVariantID: item.SkuVariantID,
			SKU:          variant.SKU,
			ProductName:  variant.ProductName,
			Quantity:     item.Quantity,
			UnitPrice:    variant.Price,
		})
	}
	return items, total, nil
}

func buildRecipients(inputs []RecipientInput) ([]models.RecipientShipment, error) {
	out := make([]models.RecipientShipment, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient name is required").
				WithDetails(map[string]any{"index": i})
		}
		out = append(out, models.RecipientShipment{
			Name:    name,
			Email:   in.Email,
			Phone:   strings.TrimSpace(in.Phone),
			Address: in.Address.toModel(),
			Status:  enums.RecipientPending,
		})
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, customerID, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := s.AdminGet(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.NotFound("swag order", orderID)
	}
	return order, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag order", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag order")
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
		status, err := enums.ParseSwagOrderStatus(strings.ToLower(params.Status))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidSwagOrderStatuses)})
		}
		filter.Status = &status
	}
	rows, err := s.repo.List(ctx, filter, params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list swag orders")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(o models.SwagOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page, NextCursor: next}, nil
}

// lockEditable locks an order that must belong to customerID and still accept
// recipient changes.
func (s *service) lockEditable(ctx context.Context, repo *Repository, customerID, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := s.lock(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.NotFound("swag order", orderID)
	}
	if !order.Status.IsPrePayment() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "recipients cannot change after payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	return order, nil
}

func (s *service) lock(ctx context.Context, repo *Repository, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := repo.Lock(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag order", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag order")
	}
	return order, nil
}

// reprice recomputes totals and status after recipients change. A new PayOS
// order code is issued so links created for the old amount cannot settle.
func (s *service) reprice(ctx context.Context, repo *Repository, order *models.SwagOrder) error {
	recipients, err := repo.ListRecipients(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recipients")
	}
	if len(recipients) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "an order needs at least one recipient")
	}
	order.TotalRecipients = len(recipients)
	order.Pricing = Quote(order.Pricing.PackPrice, len(recipients), order.ShippingMethod, order.Pricing.Discount, s.fees)
	order.Stats = Stats(recipients)
	order.Status = RollupStatus(order.Status, recipients)
	code := payos.NewOrderCode(s.now())
	if order.PaymentOrderCode != nil && *order.PaymentOrderCode == code {
		code++
	}
	order.PaymentOrderCode = &code
	if err := repo.Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save swag order")
	}
	return nil
}

func (s *service) AddRecipients(ctx context.Context, customerID, orderID uuid.UUID, inputs []RecipientInput) (*models.SwagOrder, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient is required")
	}
	recipients, err := buildRecipients(inputs)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditable(ctx, repo, customerID, orderID)
		if err != nil {
			return err
		}
		for i := range recipients {
			recipients[i].SwagOrderID = order.ID
		}
		if err := repo.CreateRecipients(ctx, recipients); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add recipients")
		}
		return s.reprice(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

func (s *service) UpdateRecipient(ctx context.Context, customerID, orderID, recipientID uuid.UUID, input RecipientInput) (*models.SwagOrder, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditable(ctx, repo, customerID, orderID)
		if err != nil {
			return err
		}
		recipient, err := repo.FindRecipient(ctx, order.ID, recipientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("recipient", recipientID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recipient")
		}
		if name := strings.TrimSpace(input.Name); name != "" {
			recipient.Name = name
		}
		if input.Email != nil {
			recipient.Email = input.Email
		}
		if phone := strings.TrimSpace(input.Phone); phone != "" {
			recipient.Phone = phone
		}
		recipient.Address = input.Address.toModel()
		if err := repo.SaveRecipient(ctx, recipient); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save recipient")
		}
		return s.reprice(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

func (s *service) RemoveRecipient(ctx context.Context, customerID, orderID, recipientID uuid.UUID) (*models.SwagOrder, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockEditable(ctx, repo, customerID, orderID)
		if err != nil {
			return err
		}
		removed, err := repo.DeleteRecipient(ctx, order.ID, recipientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove recipient")
		}
		if !removed {
			return pkgerrors.NotFound("recipient", recipientID)
		}
		return s.reprice(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

// Cancel stops an order before any parcel leaves. Reserved stock goes back
// on the shelf unless kitting already consumed it.
func (s *service) Cancel(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, reason string) (*models.SwagOrder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Cancelled by customer"
		if actor.Role.IsBackOffice() {
			reason = "Cancelled by staff"
		}
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !actor.Role.IsBackOffice() && order.CustomerID != actor.UserID {
			return pkgerrors.NotFound("swag order", orderID)
		}
		switch order.Status {
		case enums.SwagOrderShipped, enums.SwagOrderDelivered, enums.SwagOrderCancelled, enums.SwagOrderFailed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		recipients, err := repo.ListRecipients(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recipients")
		}
		for _, r := range recipients {
			if r.HasShipment() {
				return pkgerrors.New(pkgerrors.CodeConflict, "cancel carrier shipments before cancelling the order").
					WithDetails(map[string]any{"recipientId": r.ID.String()})
			}
		}

		if order.InventoryReserved && order.Production.KittingStatus != enums.KittingCompleted {
			for _, item := range order.PackSnapshot.V {
				id := order.ID
				err := s.inventory.ReleaseTx(ctx, tx, inventory.Movement{
					SkuVariantID:    item.SkuVariantID,
					Quantity:        item.Quantity * order.TotalRecipients,
					ReferenceType:   enums.InventoryRefSwagOrder,
					ReferenceID:     &id,
					ReferenceNumber: order.OrderNumber,
					Reason:          "Release for cancelled order " + order.OrderNumber,
					PerformedBy:     actorID(actor),
				})
				if err != nil {
					return err
				}
			}
			order.InventoryReserved = false
		}

		now := s.now().UTC()
		order.Status = enums.SwagOrderCancelled
		order.CancelledAt = &now
		order.CancelReason = &reason
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save swag order")
		}
		all := append([]enums.RecipientStatus{}, enums.ValidRecipientStatuses...)
		if err := repo.SetRecipientStatus(ctx, order.ID, all, enums.RecipientCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel recipients")
		}
		if _, err := repo.RecomputeStats(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSwagOrderCancelled,
			AggregateType: enums.AggregateSwagOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.SwagOrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reason:      reason,
				CancelledAt: now,
			},
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionSwagOrderCancelled,
			ResourceType: "swag_order",
			ResourceID:   order.ID.String(),
			Details:      map[string]any{"reason": reason, "orderNumber": order.OrderNumber},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

func (s *service) UpdateProduction(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input ProductionInput) (*models.SwagOrder, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.SwagOrderPaid && order.Status != enums.SwagOrderProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "production can only change on paid orders").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.Production.KittingStatus == enums.KittingCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "kitting already completed")
		}
		before := order.Production
		if input.Status != nil {
			status := enums.ProductionStatus(strings.ToLower(strings.TrimSpace(*input.Status)))
			if !status.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid production status").
					WithDetails(map[string]any{"allowed": enums.Values(enums.ValidProductionStatuses)})
			}
			order.Production.Status = status
		}
		if input.QCRequired != nil {
			order.Production.QCRequired = *input.QCRequired
		}
		if input.QCStatus != nil {
			qc := enums.QCStatus(strings.ToLower(strings.TrimSpace(*input.QCStatus)))
			if !qc.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid qc status").
					WithDetails(map[string]any{"allowed": enums.Values(enums.ValidQCStatuses)})
			}
			order.Production.QCStatus = qc
		}
		if order.Status == enums.SwagOrderPaid && order.Production.Status != enums.ProductionPending {
			order.Status = enums.SwagOrderProcessing
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save swag order")
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionProductionUpdated,
			ResourceType: "swag_order",
			ResourceID:   order.ID.String(),
			Details: map[string]any{
				"from": map[string]any{"status": before.Status, "qcRequired": before.QCRequired, "qcStatus": before.QCStatus},
				"to":   map[string]any{"status": order.Production.Status, "qcRequired": order.Production.QCRequired, "qcStatus": order.Production.QCStatus},
			},
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
	if order.Status != enums.SwagOrderPendingPayment || order.PaymentOrderCode == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	items := make([]payos.Item, 0, len(order.PackSnapshot.V))
	for _, item := range order.PackSnapshot.V {
		items = append(items, payos.Item{
			Name:     item.ProductName,
			Quantity: item.Quantity * order.TotalRecipients,
			Price:    item.UnitPrice.IntPart(),
		})
	}
	link, err := s.payments.CreatePaymentLink(ctx, payos.PaymentRequest{
		OrderCode:   *order.PaymentOrderCode,
		Amount:      order.Pricing.Total.Ceil().IntPart(),
		Description: "DH " + order.OrderNumber,
		Items:       items,
		ReturnURL:   s.returnURL + "?swagOrderId=" + order.ID.String(),
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment link")
	}
	return &PaymentLinkResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderCode:   *order.PaymentOrderCode,
		CheckoutURL: link.CheckoutURL,
	}, nil
}

// MarkPaid settles an order from a PayOS confirmation. Repeated deliveries
// are no-ops. Stock is reserved for every pack item times recipients; when
// stock is short the payment is still recorded and the order waits for
// replenishment with InventoryReserved false.
func (s *service) MarkPaid(ctx context.Context, orderCode int64, amount int64) (*models.SwagOrder, error) {
	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByPaymentCode(ctx, orderCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("swag order", orderCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag order")
		}
		orderID = order.ID
		if order.PaymentStatus == enums.PaymentPaid {
			return nil
		}
		if order.Status == enums.SwagOrderCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment received for a cancelled order").
				WithDetails(map[string]any{"orderNumber": order.OrderNumber})
		}
		if amount > 0 && decimal.NewFromInt(amount).LessThan(order.Pricing.Total.Floor()) {
			return pkgerrors.New(pkgerrors.CodeValidation, "paid amount is below the order total").
				WithDetails(map[string]any{"amount": amount, "total": order.Pricing.Total.String()})
		}

		order.InventoryReserved = s.reserve(ctx, tx, order)
		now := s.now().UTC()
		order.PaymentStatus = enums.PaymentPaid
		order.PaidAt = &now
		order.Status = enums.SwagOrderPaid
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save swag order")
		}
		recipients, err := repo.ListRecipients(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recipients")
		}
		for i := range recipients {
			if recipients[i].Status == enums.RecipientPending && recipients[i].Address.IsComplete() {
				recipients[i].Status = enums.RecipientProcessing
				if err := repo.SaveRecipient(ctx, &recipients[i]); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save recipient")
				}
			}
		}
		if _, err := repo.RecomputeStats(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSwagOrderPaid,
			AggregateType: enums.AggregateSwagOrder,
			AggregateID:   order.ID,
			Data: payloads.SwagOrderPaidEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				CustomerID:       order.CustomerID,
				PaymentOrderCode: orderCode,
				Amount:           order.Pricing.Total,
				PaidAt:           now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

// reserve holds stock inside a savepoint so a shortage rolls back only the
// reservations, not the payment.
func (s *service) reserve(ctx context.Context, tx *gorm.DB, order *models.SwagOrder) bool {
	if err := tx.SavePoint(reserveSavepoint).Error; err != nil {
		s.logg.Error(ctx, "swag order reserve savepoint failed", err)
		return false
	}
	id := order.ID
	for _, item := range order.PackSnapshot.V {
		err := s.inventory.ReserveTx(ctx, tx, inventory.Movement{
			SkuVariantID:    item.SkuVariantID,
			Quantity:        item.Quantity * order.TotalRecipients,
			ReferenceType:   enums.InventoryRefSwagOrder,
			ReferenceID:     &id,
			ReferenceNumber: order.OrderNumber,
			Reason:          "Reserve for order " + order.OrderNumber,
		})
		if err != nil {
			tx.RollbackTo(reserveSavepoint)
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
				"sku":          item.SKU,
			})
			s.logg.Error(logCtx, "paid swag order could not reserve stock", err)
			return false
		}
	}
	return true
}

func actorID(actor auditlog.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func actorRef(actor auditlog.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
