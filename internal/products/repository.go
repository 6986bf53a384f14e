package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// Repository wires together all catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product with its variants and their inventory rows.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("sku ASC") }).
		Preload("Variants.Inventory").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("slug = ?", slug)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants").Create(product).Error
}

func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants").Save(product).Error
}

// UpdateStatus sets the status and reports whether a live row matched.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ProductStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("status", status)
	return res.RowsAffected > 0, res.Error
}

// DeleteProduct soft deletes the product.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

// ListProducts pages through products newest first.
func (r *Repository) ListProducts(ctx context.Context, input ListProductsInput) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if input.Status != nil {
		query = query.Where("status = ?", *input.Status)
	}
	if c := strings.TrimSpace(input.Category); c != "" {
		query = query.Where("category = ?", c)
	}
	if input.SupplierID != nil {
		query = query.Where("supplier_id = ?", *input.SupplierID)
	}
	if q := strings.TrimSpace(input.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR slug LIKE ?", like, like)
	}
	query, err := pagination.Seek(query, input.Params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	err = query.Preload("Variants", "is_active = ?", true).Find(&rows).Error
	return rows, err
}

func (r *Repository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SkuVariant{}).Where("sku = ?", sku).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.SkuVariant) error {
	return r.db.WithContext(ctx).Omit("Inventory").Create(variant).Error
}

func (r *Repository) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.SkuVariant, error) {
	var rows []models.SkuVariant
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		Where("product_id = ?", productID).
		Order("sku ASC").
		Find(&rows).Error
	return rows, err
}

// FindVariantBySKU resolves a scanned SKU to its variant.
func (r *Repository) FindVariantBySKU(ctx context.Context, sku string) (*models.SkuVariant, error) {
	var variant models.SkuVariant
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariantsByIDs loads variants keyed by id, with their product names.
func (r *Repository) FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]VariantWithProduct, error) {
	out := make(map[uuid.UUID]VariantWithProduct, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []VariantWithProduct
	err := r.db.WithContext(ctx).
		Table("sku_variants AS v").
		Select("v.id, v.product_id, v.sku, v.name, v.price, v.is_active, p.name AS product_name, p.status AS product_status").
		Joins("JOIN products p ON p.id = v.product_id AND p.deleted_at IS NULL").
		Where("v.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
