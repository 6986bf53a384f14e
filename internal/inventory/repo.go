package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// Level is an inventory row joined with its variant and product.
type Level struct {
	SkuVariantID      uuid.UUID       `json:"skuVariantId"`
	SKU               string          `gorm:"column:sku" json:"sku"`
	VariantName       string          `json:"variantName"`
	ProductID         uuid.UUID       `json:"productId"`
	ProductName       string          `json:"productName"`
	OnHand            int             `json:"onHand"`
	Reserved          int             `json:"reserved"`
	Available         int             `json:"available"`
	ReorderPoint      int             `json:"reorderPoint"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	UnitCost          decimal.Decimal `json:"unitCost"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Overview aggregates stock across every variant.
type Overview struct {
	TotalVariants int64           `json:"totalVariants"`
	TotalOnHand   int64           `json:"totalOnHand"`
	TotalReserved int64           `json:"totalReserved"`
	Available     int64           `json:"available"`
	LowStockCount int64           `json:"lowStockCount"`
	OutOfStock    int64           `json:"outOfStock"`
	StockValue    decimal.Decimal `json:"stockValue"`
}

const levelSelect = `i.sku_variant_id, v.sku, v.name AS variant_name, p.id AS product_id, p.name AS product_name,
i.on_hand, i.reserved, i.on_hand - i.reserved AS available, i.reorder_point, i.low_stock_threshold,
i.unit_cost, i.updated_at`

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) levels(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("inventory_items AS i").
		Select(levelSelect).
		Joins("JOIN sku_variants v ON v.id = i.sku_variant_id").
		Joins("JOIN products p ON p.id = v.product_id")
}

func (r *Repository) GetLevel(ctx context.Context, variantID uuid.UUID) (*Level, error) {
	var level Level
	res := r.levels(ctx).Where("i.sku_variant_id = ?", variantID).Limit(1).Scan(&level)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &level, nil
}

// LockItem reads the row with FOR UPDATE so the ledger's before/after values
// match the guarded update that follows in the same transaction.
func (r *Repository) LockItem(ctx context.Context, variantID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "sku_variant_id = ?", variantID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListLevels pages through stock levels ordered by SKU.
func (r *Repository) ListLevels(ctx context.Context, query string, lowOnly bool, limit, offset int) ([]Level, error) {
	q := r.levels(ctx)
	if lowOnly {
		q = q.Where("i.on_hand - i.reserved <= i.low_stock_threshold")
	}
	if s := strings.TrimSpace(query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(v.sku) LIKE ? OR LOWER(p.name) LIKE ?", like, like)
	}
	var rows []Level
	err := q.Order("i.on_hand - i.reserved ASC").Order("v.sku ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Offset(offset).
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) Overview(ctx context.Context) (*Overview, error) {
	var row struct {
		TotalVariants int64
		TotalOnHand   int64
		TotalReserved int64
		LowStockCount int64
		OutOfStock    int64
		StockValue    decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).
		Table("inventory_items").
		Select(`COUNT(*) AS total_variants,
COALESCE(SUM(on_hand), 0) AS total_on_hand,
COALESCE(SUM(reserved), 0) AS total_reserved,
COALESCE(SUM(CASE WHEN on_hand - reserved <= low_stock_threshold THEN 1 ELSE 0 END), 0) AS low_stock_count,
COALESCE(SUM(CASE WHEN on_hand - reserved <= 0 THEN 1 ELSE 0 END), 0) AS out_of_stock,
COALESCE(SUM(on_hand * unit_cost), 0) AS stock_value`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &Overview{
		TotalVariants: row.TotalVariants,
		TotalOnHand:   row.TotalOnHand,
		TotalReserved: row.TotalReserved,
		Available:     row.TotalOnHand - row.TotalReserved,
		LowStockCount: row.LowStockCount,
		OutOfStock:    row.OutOfStock,
		StockValue:    row.StockValue.Decimal,
	}, nil
}

// ApplyDelta moves on_hand and reserved in a single guarded UPDATE. It
// reports false when the row is missing or the result would break
// 0 <= reserved <= on_hand.
func (r *Repository) ApplyDelta(ctx context.Context, variantID uuid.UUID, onHandDelta, reservedDelta int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("sku_variant_id = ?", variantID).
		Where("on_hand + ? >= 0", onHandDelta).
		Where("reserved + ? >= 0", reservedDelta).
		Where("reserved + ? <= on_hand + ?", reservedDelta, onHandDelta).
		Updates(map[string]any{
			"on_hand":    gorm.Expr("on_hand + ?", onHandDelta),
			"reserved":   gorm.Expr("reserved + ?", reservedDelta),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) SetUnitCost(ctx context.Context, variantID uuid.UUID, cost decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("sku_variant_id = ?", variantID).
		Update("unit_cost", cost).Error
}

func (r *Repository) InsertTransaction(ctx context.Context, row *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) SKUFor(ctx context.Context, variantID uuid.UUID) (string, error) {
	var sku string
	err := r.db.WithContext(ctx).Model(&models.SkuVariant{}).Where("id = ?", variantID).Pluck("sku", &sku).Error
	return sku, err
}

// TransactionFilter narrows the ledger listing.
type TransactionFilter struct {
	Type *enums.InventoryTransactionType
	pagination.Params
}

func (r *Repository) ListTransactions(ctx context.Context, variantID uuid.UUID, filter TransactionFilter) ([]models.InventoryTransaction, error) {
	q := r.db.WithContext(ctx).Model(&models.InventoryTransaction{}).Where("sku_variant_id = ?", variantID)
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	q, err := pagination.Seek(q, filter.Params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.InventoryTransaction
	err = q.Find(&rows).Error
	return rows, err
}
