package kitting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/internal/inventory"
	"github.com/printz/fulfillment-backend/internal/swagorders"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/outbox"
	"github.com/printz/fulfillment-backend/pkg/outbox/payloads"
)

type ChecklistItem struct {
	SkuVariantID   uuid.UUID `json:"skuVariantId"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"productName"`
	QuantityNeeded int       `json:"quantityNeeded"`
	QuantityPacked int       `json:"quantityPacked"`
	IsPacked       bool      `json:"isPacked"`
}

type Progress struct {
	TotalItems      int `json:"totalItems"`
	PackedItems     int `json:"packedItems"`
	PercentComplete int `json:"percentComplete"`
}

type Checklist struct {
	OrderID         uuid.UUID           `json:"orderId"`
	OrderNumber     string              `json:"orderNumber"`
	TotalRecipients int                 `json:"totalRecipients"`
	Items           []ChecklistItem     `json:"items"`
	Progress        Progress            `json:"progress"`
	Status          enums.KittingStatus `json:"status"`
	StartedAt       *time.Time          `json:"startedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	KittedBy        *uuid.UUID          `json:"kittedBy,omitempty"`
}

type ScanInput struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity,omitempty" validate:"gte=0"`
}

type ScanResult struct {
	SKU              string    `json:"sku"`
	ProductName      string    `json:"productName"`
	ExpectedQuantity int       `json:"expectedQuantity"`
	ScannedQuantity  int       `json:"scannedQuantity"`
	ScannedAt        time.Time `json:"scannedAt"`
	ScannedBy        uuid.UUID `json:"scannedBy"`
}

type StockCheck struct {
	SkuVariantID   uuid.UUID `json:"skuVariantId"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"productName"`
	QuantityNeeded int       `json:"quantityNeeded"`
	AvailableStock int       `json:"availableStock"`
	IsAvailable    bool      `json:"isAvailable"`
	Shortage       int       `json:"shortage"`
}

type Validation struct {
	OrderID      uuid.UUID    `json:"orderId"`
	AllAvailable bool         `json:"allAvailable"`
	Items        []StockCheck `json:"items"`
}

type QueueParams struct {
	Status string
	SortBy string
	Limit  int
}

type variantFinder interface {
	FindVariantBySKU(ctx context.Context, sku string) (*models.SkuVariant, error)
}

type stockReader interface {
	Get(ctx context.Context, variantID uuid.UUID) (*inventory.Level, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives pack assembly for paid swag orders.
type Service interface {
	Queue(ctx context.Context, params QueueParams) ([]models.SwagOrder, error)
	Checklist(ctx context.Context, orderID uuid.UUID) (*Checklist, error)
	Start(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error)
	Scan(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input ScanInput) (*ScanResult, error)
	Validate(ctx context.Context, orderID uuid.UUID) (*Validation, error)
	Complete(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error)
}

type ServiceParams struct {
	Repo     *Repository
	Orders   *swagorders.Repository
	Variants variantFinder
	Stock    stockReader
	Ledger   inventory.Ledger
	Outbox   outbox.Emitter
	Audit    auditlog.Recorder
	TxRunner txRunner
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	orders   *swagorders.Repository
	variants variantFinder
	stock    stockReader
	ledger   inventory.Ledger
	outbox   outbox.Emitter
	audit    auditlog.Recorder
	tx       txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("kitting repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("swag order repository required")
	case params.Variants == nil:
		return nil, fmt.Errorf("variant finder required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock reader required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		variants: params.Variants,
		stock:    params.Stock,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		audit:    params.Audit,
		tx:       params.TxRunner,
		logg:     logg,
	}, nil
}

func (s *service) Queue(ctx context.Context, params QueueParams) ([]models.SwagOrder, error) {
	filter := QueueFilter{ByPriority: strings.EqualFold(params.SortBy, "priority"), Limit: params.Limit}
	if params.Status != "" {
		status, err := enums.ParseKittingStatus(strings.ToLower(params.Status))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid kitting status").
				WithDetails(map[string]any{"allowed": enums.Values(enums.ValidKittingStatuses)})
		}
		filter.KittingStatus = &status
	}
	rows, err := s.repo.Queue(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load kitting queue")
	}
	return rows, nil
}

func (s *service) load(ctx context.Context, repo *swagorders.Repository, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := repo.Lock(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag order", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag order")
	}
	return order, nil
}

func ensureReady(order *models.SwagOrder) error {
	if order.Production.Status != enums.ProductionCompleted {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cannot start kitting - production not completed")
	}
	if order.Production.QCRequired && order.Production.QCStatus != enums.QCPassed {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cannot start kitting - QC check not passed")
	}
	return nil
}

// Checklist lists every SKU to pick: per-pack quantity times recipients.
func (s *service) Checklist(ctx context.Context, orderID uuid.UUID) (*Checklist, error) {
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	if err := ensureReady(order); err != nil {
		return nil, err
	}
	if len(order.PackSnapshot.V) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Swag pack has no items")
	}
	done := order.Production.KittingStatus == enums.KittingCompleted
	items := make([]ChecklistItem, 0, len(order.PackSnapshot.V))
	packed := 0
	for _, snap := range order.PackSnapshot.V {
		needed := snap.Quantity * order.TotalRecipients
		item := ChecklistItem{
			SkuVariantID:   snap.SkuVariantID,
			SKU:            snap.SKU,
			ProductName:    snap.ProductName,
			QuantityNeeded: needed,
		}
		if done {
			item.QuantityPacked = needed
			item.IsPacked = true
			packed++
		}
		items = append(items, item)
	}
	percent := 0
	if len(items) > 0 {
		percent = packed * 100 / len(items)
	}
	return &Checklist{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		TotalRecipients: order.TotalRecipients,
		Items:           items,
		Progress:        Progress{TotalItems: len(items), PackedItems: packed, PercentComplete: percent},
		Status:          order.Production.KittingStatus,
		StartedAt:       order.Production.KittingStartedAt,
		CompletedAt:     order.Production.KittingCompletedAt,
		KittedBy:        order.Production.KittedBy,
	}, nil
}

func (s *service) Start(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.SwagOrderPaid && order.Status != enums.SwagOrderProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready for kitting").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.Production.Status != enums.ProductionCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "Cannot start kitting - production not completed")
		}
		if order.Production.KittingStatus == enums.KittingCompleted {
			return pkgerrors.New(pkgerrors.CodeConflict, "Kitting already completed")
		}
		if err := ensureReady(order); err != nil {
			return err
		}
		now := time.Now().UTC()
		order.Production.KittingStatus = enums.KittingInProgress
		order.Production.KittingStartedAt = &now
		order.Production.KittedBy = actorID(actor)
		if order.Status == enums.SwagOrderPaid {
			order.Status = enums.SwagOrderProcessing
		}
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start kitting")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithActor(s.logg.WithOrder(ctx, "swag", orderID.String()), actor.UserID.String(), string(actor.Role))
	s.logg.Info(logCtx, "kitting started")
	return s.orders.FindByID(ctx, orderID)
}

func (s *service) Scan(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID, input ScanInput) (*ScanResult, error) {
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	if order.Production.KittingStatus != enums.KittingInProgress {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Kitting not in progress - please start kitting first")
	}
	sku := strings.ToUpper(strings.TrimSpace(input.SKU))
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	variant, err := s.variants.FindVariantBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("sku", sku)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sku")
	}
	for _, item := range order.PackSnapshot.V {
		if item.SkuVariantID != variant.ID {
			continue
		}
		qty := input.Quantity
		if qty <= 0 {
			qty = 1
		}
		return &ScanResult{
			SKU:              variant.SKU,
			ProductName:      item.ProductName,
			ExpectedQuantity: item.Quantity * order.TotalRecipients,
			ScannedQuantity:  qty,
			ScannedAt:        time.Now().UTC(),
			ScannedBy:        actor.UserID,
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("SKU %s is not part of this swag pack", sku))
}

// Validate compares each checklist line with stock. Units the order already
// holds in reservation count as available to it.
func (s *service) Validate(ctx context.Context, orderID uuid.UUID) (*Validation, error) {
	checklist, err := s.Checklist(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	out := &Validation{OrderID: orderID, AllAvailable: true}
	for _, item := range checklist.Items {
		level, err := s.stock.Get(ctx, item.SkuVariantID)
		if err != nil {
			return nil, err
		}
		available := level.Available
		if order.InventoryReserved {
			available += item.QuantityNeeded
		}
		check := StockCheck{
			SkuVariantID:   item.SkuVariantID,
			SKU:            item.SKU,
			ProductName:    item.ProductName,
			QuantityNeeded: item.QuantityNeeded,
			AvailableStock: available,
			IsAvailable:    available >= item.QuantityNeeded,
		}
		if !check.IsAvailable {
			check.Shortage = item.QuantityNeeded - available
			out.AllAvailable = false
		}
		out.Items = append(out.Items, check)
	}
	return out, nil
}

// Complete takes every pack item off the shelf in one transaction. A
// shortage on any line rolls the whole transaction back and reports all of
// them, so inventory never goes below zero.
func (s *service) Complete(ctx context.Context, actor auditlog.Actor, orderID uuid.UUID) (*models.SwagOrder, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Production.KittingStatus != enums.KittingInProgress {
			return pkgerrors.New(pkgerrors.CodeConflict, "Kitting not in progress")
		}

		var shortages []*inventory.ShortageError
		var failures error
		id := order.ID
		for _, item := range order.PackSnapshot.V {
			m := inventory.Movement{
				SkuVariantID:    item.SkuVariantID,
				Quantity:        item.Quantity * order.TotalRecipients,
				ReferenceType:   enums.InventoryRefSwagOrder,
				ReferenceID:     &id,
				ReferenceNumber: order.OrderNumber,
				PerformedBy:     actorID(actor),
			}
			if !order.InventoryReserved {
				m.Reason = "Reserve at kitting for " + order.OrderNumber
				if err := s.ledger.ReserveTx(ctx, tx, m); err != nil {
					if shortage := asShortage(err); shortage != nil {
						shortages = append(shortages, shortage)
						continue
					}
					failures = multierr.Append(failures, err)
					continue
				}
			}
			m.Reason = "Kitting for order " + order.OrderNumber
			if err := s.ledger.ConsumeTx(ctx, tx, m); err != nil {
				if shortage := asShortage(err); shortage != nil {
					shortages = append(shortages, shortage)
					continue
				}
				failures = multierr.Append(failures, err)
			}
		}
		if failures != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, failures, "consume stock for kitting")
		}
		if len(shortages) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock to complete kitting").
				WithDetails(map[string]any{"shortages": shortages})
		}

		now := time.Now().UTC()
		order.Production.KittingStatus = enums.KittingCompleted
		order.Production.KittingCompletedAt = &now
		order.Production.KittedBy = actorID(actor)
		order.InventoryReserved = false
		order.Status = enums.SwagOrderKitting
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete kitting")
		}
		if err := repo.SetRecipientStatus(ctx, order.ID, []enums.RecipientStatus{enums.RecipientPending}, enums.RecipientProcessing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update recipients")
		}
		if _, err := repo.RecomputeStats(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute stats")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSwagOrderKitted,
			AggregateType: enums.AggregateSwagOrder,
			AggregateID:   order.ID,
			Data: payloads.SwagOrderKittedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Recipients:  order.TotalRecipients,
				KittedBy:    order.Production.KittedBy,
				CompletedAt: now,
			},
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionKittingCompleted,
			ResourceType: "swag_order",
			ResourceID:   order.ID.String(),
			Details:      map[string]any{"orderNumber": order.OrderNumber, "recipients": order.TotalRecipients},
		})
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithActor(s.logg.WithOrder(ctx, "swag", orderID.String()), actor.UserID.String(), string(actor.Role))
	s.logg.Info(logCtx, "kitting completed")
	return s.orders.FindByID(ctx, orderID)
}

func asShortage(err error) *inventory.ShortageError {
	var shortage *inventory.ShortageError
	if errors.As(err, &shortage) {
		return shortage
	}
	return nil
}

func actorID(actor auditlog.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}
