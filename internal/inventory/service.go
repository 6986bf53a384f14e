package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// ShortageError reports a guarded stock movement that would have driven a
// count negative or pushed reserved above on hand.
type ShortageError struct {
	SkuVariantID uuid.UUID `json:"skuVariantId"`
	SKU          string    `json:"sku"`
	Required     int       `json:"required"`
	OnHand       int       `json:"onHand"`
	Reserved     int       `json:"reserved"`
	Available    int       `json:"available"`
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %d, on hand %d, reserved %d", e.SKU, e.Required, e.OnHand, e.Reserved)
}

// Movement is one stock change requested by another domain.
type Movement struct {
	SkuVariantID    uuid.UUID
	Quantity        int
	ReferenceType   enums.InventoryReferenceType
	ReferenceID     *uuid.UUID
	ReferenceNumber string
	Reason          string
	PerformedBy     *uuid.UUID
}

type AdjustInput struct {
	QuantityChange int     `json:"quantityChange" validate:"required"`
	Reason         string  `json:"reason" validate:"required"`
	Notes          *string `json:"notes,omitempty"`
}

type PurchaseInput struct {
	Quantity        int             `json:"quantity" validate:"gt=0"`
	UnitCost        decimal.Decimal `json:"unitCost"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

type ListParams struct {
	Query  string
	Limit  int
	Offset int
}

type TransactionsResult struct {
	Transactions []models.InventoryTransaction `json:"transactions"`
	NextCursor   string                        `json:"nextCursor,omitempty"`
}

// Service covers the back-office inventory screens.
type Service interface {
	Overview(ctx context.Context) (*Overview, error)
	ListLevels(ctx context.Context, params ListParams) ([]Level, error)
	LowStock(ctx context.Context, params ListParams) ([]Level, error)
	Get(ctx context.Context, variantID uuid.UUID) (*Level, error)
	Transactions(ctx context.Context, variantID uuid.UUID, filter TransactionFilter) (*TransactionsResult, error)
	Adjust(ctx context.Context, actor auditlog.Actor, variantID uuid.UUID, input AdjustInput) (*Level, error)
	Purchase(ctx context.Context, actor auditlog.Actor, variantID uuid.UUID, input PurchaseInput) (*Level, error)
	Reserve(ctx context.Context, m Movement) error
	Release(ctx context.Context, m Movement) error
	Ledger
}

// Ledger applies movements inside a caller-owned transaction so stock moves
// commit or roll back with the order change that caused them.
type Ledger interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, m Movement) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, m Movement) error
	ConsumeTx(ctx context.Context, tx *gorm.DB, m Movement) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	Audit    auditlog.Recorder
	Logger   *logger.Logger
}

type service struct {
	repo  *Repository
	tx    txRunner
	audit auditlog.Recorder
	logg  *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: params.Repo, tx: params.TxRunner, audit: params.Audit, logg: logg}, nil
}

func (s *service) Overview(ctx context.Context) (*Overview, error) {
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inventory overview")
	}
	return overview, nil
}

func (s *service) ListLevels(ctx context.Context, params ListParams) ([]Level, error) {
	rows, err := s.repo.ListLevels(ctx, params.Query, false, params.Limit, max(params.Offset, 0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list inventory")
	}
	return rows, nil
}

func (s *service) LowStock(ctx context.Context, params ListParams) ([]Level, error) {
	rows, err := s.repo.ListLevels(ctx, params.Query, true, params.Limit, max(params.Offset, 0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, variantID uuid.UUID) (*Level, error) {
	level, err := s.repo.GetLevel(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("inventory item", variantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory item")
	}
	return level, nil
}

func (s *service) Transactions(ctx context.Context, variantID uuid.UUID, filter TransactionFilter) (*TransactionsResult, error) {
	if _, err := s.Get(ctx, variantID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, variantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list inventory transactions")
	}
	page, next := pagination.TrimPage(rows, filter.Limit, func(row models.InventoryTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &TransactionsResult{Transactions: page, NextCursor: next}, nil
}

// Adjust applies a manual correction to on hand. Going below zero is a
// validation error; dropping under what is already reserved is a conflict.
func (s *service) Adjust(ctx context.Context, actor auditlog.Actor, variantID uuid.UUID, input AdjustInput) (*Level, error) {
	if input.QuantityChange == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantityChange cannot be 0")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required for manual adjustment")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.lock(ctx, repo, variantID)
		if err != nil {
			return err
		}
		next := item.OnHand + input.QuantityChange
		if next < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment would make on hand negative").
				WithDetails(map[string]any{"onHand": item.OnHand, "quantityChange": input.QuantityChange})
		}
		if next < item.Reserved {
			return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drop on hand below reserved").
				WithDetails(map[string]any{"onHand": item.OnHand, "reserved": item.Reserved, "quantityChange": input.QuantityChange})
		}
		ok, err := repo.ApplyDelta(ctx, variantID, input.QuantityChange, 0)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply adjustment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory changed concurrently")
		}
		if err := s.record(ctx, repo, variantID, enums.InventoryTxAdjustment, item.OnHand, input.QuantityChange, Movement{
			ReferenceType: enums.InventoryRefManual,
			Reason:        reason,
			PerformedBy:   actorID(actor),
		}, input.Notes, item.UnitCost); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionInventoryAdjusted,
			ResourceType: "inventory_item",
			ResourceID:   variantID.String(),
			Details:      map[string]any{"quantityChange": input.QuantityChange, "reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, variantID)
}

// Purchase receives stock and folds its cost into a weighted average.
func (s *service) Purchase(ctx context.Context, actor auditlog.Actor, variantID uuid.UUID, input PurchaseInput) (*Level, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than 0")
	}
	if input.UnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unitCost cannot be negative")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.lock(ctx, repo, variantID)
		if err != nil {
			return err
		}
		ok, err := repo.ApplyDelta(ctx, variantID, input.Quantity, 0)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply purchase")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory changed concurrently")
		}
		if err := repo.SetUnitCost(ctx, variantID, WeightedAverageCost(item.OnHand, item.UnitCost, input.Quantity, input.UnitCost)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update unit cost")
		}
		reason := "Purchase received"
		if ref := strings.TrimSpace(input.ReferenceNumber); ref != "" {
			reason = "Purchase from PO " + ref
		}
		return s.record(ctx, repo, variantID, enums.InventoryTxPurchase, item.OnHand, input.Quantity, Movement{
			ReferenceType:   enums.InventoryRefPurchaseOrder,
			ReferenceNumber: input.ReferenceNumber,
			Reason:          reason,
			PerformedBy:     actorID(actor),
		}, input.Notes, input.UnitCost)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, variantID)
}

func (s *service) Reserve(ctx context.Context, m Movement) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error { return s.ReserveTx(ctx, tx, m) })
}

func (s *service) Release(ctx context.Context, m Movement) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error { return s.ReleaseTx(ctx, tx, m) })
}

// ReserveTx promises stock to an order. Fails with CONFLICT when fewer than
// m.Quantity units are available.
func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, m Movement) error {
	return s.move(ctx, tx, m, enums.InventoryTxReserve, 0, m.Quantity)
}

// ReleaseTx returns reserved stock. Fails with CONFLICT when fewer than
// m.Quantity units are reserved.
func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, m Movement) error {
	return s.move(ctx, tx, m, enums.InventoryTxRelease, 0, -m.Quantity)
}

// ConsumeTx takes reserved stock off the shelf for kitting, decrementing
// both on hand and reserved.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, m Movement) error {
	return s.move(ctx, tx, m, enums.InventoryTxKitting, -m.Quantity, -m.Quantity)
}

func (s *service) move(ctx context.Context, tx *gorm.DB, m Movement, txType enums.InventoryTransactionType, onHandDelta, reservedDelta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "inventory movement requires a transaction")
	}
	if m.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than 0")
	}
	repo := s.repo.WithTx(tx)
	item, err := s.lock(ctx, repo, m.SkuVariantID)
	if err != nil {
		return err
	}

	ok, err := repo.ApplyDelta(ctx, m.SkuVariantID, onHandDelta, reservedDelta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply inventory movement")
	}
	if !ok {
		sku, _ := repo.SKUFor(ctx, m.SkuVariantID)
		shortage := &ShortageError{
			SkuVariantID: m.SkuVariantID,
			SKU:          sku,
			Required:     m.Quantity,
			OnHand:       item.OnHand,
			Reserved:     item.Reserved,
			Available:    item.Available(),
		}
		return pkgerrors.Wrap(pkgerrors.CodeConflict, shortage, shortage.Error()).WithDetails(shortage)
	}

	// Reserve and release rows track availability; kitting tracks on hand.
	before, change := item.OnHand, onHandDelta
	if txType != enums.InventoryTxKitting {
		before, change = item.Available(), -reservedDelta
	}
	if err := s.record(ctx, repo, m.SkuVariantID, txType, before, change, m, nil, item.UnitCost); err != nil {
		return err
	}

	after := item.Available() - reservedDelta
	if after <= item.LowStockThreshold {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sku_variant_id": m.SkuVariantID.String(),
			"available":      after,
			"threshold":      item.LowStockThreshold,
		})
		s.logg.Warn(logCtx, "inventory low stock")
	}
	return nil
}

func (s *service) lock(ctx context.Context, repo *Repository, variantID uuid.UUID) (*models.InventoryItem, error) {
	item, err := repo.LockItem(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("inventory item", variantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock inventory item")
	}
	return item, nil
}

func (s *service) record(
	ctx context.Context,
	repo *Repository,
	variantID uuid.UUID,
	txType enums.InventoryTransactionType,
	before, change int,
	m Movement,
	notes *string,
	unitCost decimal.Decimal,
) error {
	sku, err := repo.SKUFor(ctx, variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sku")
	}
	row := &models.InventoryTransaction{
		SkuVariantID:   variantID,
		SKU:            sku,
		Type:           txType,
		QuantityBefore: before,
		QuantityChange: change,
		QuantityAfter:  before + change,
		ReferenceID:    m.ReferenceID,
		UnitCost:       unitCost,
		TotalCost:      unitCost.Mul(decimal.NewFromInt(int64(abs(change)))),
		Reason:         m.Reason,
		Notes:          notes,
		PerformedBy:    m.PerformedBy,
	}
	if m.ReferenceType != "" {
		ref := string(m.ReferenceType)
		row.ReferenceType = &ref
	}
	if m.ReferenceNumber != "" {
		num := m.ReferenceNumber
		row.ReferenceNumber = &num
	}
	if row.Reason == "" {
		row.Reason = string(txType)
	}
	if err := repo.InsertTransaction(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record inventory transaction")
	}
	return nil
}

// WeightedAverageCost blends the current stock cost with a new receipt.
func WeightedAverageCost(onHand int, current decimal.Decimal, received int, receivedCost decimal.Decimal) decimal.Decimal {
	if onHand <= 0 {
		return receivedCost.Round(2)
	}
	total := current.Mul(decimal.NewFromInt(int64(onHand))).Add(receivedCost.Mul(decimal.NewFromInt(int64(received))))
	return total.Div(decimal.NewFromInt(int64(onHand + received))).Round(2)
}

func actorID(actor auditlog.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
