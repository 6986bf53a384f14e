package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Slug        string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description *string         `json:"description,omitempty"`
	Category    string          `json:"category" validate:"required"`
	SupplierID  *uuid.UUID      `json:"supplierId,omitempty"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Status      string          `json:"status,omitempty"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Slug        *string          `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	SupplierID  *uuid.UUID       `json:"supplierId,omitempty"`
	BasePrice   *decimal.Decimal `json:"basePrice,omitempty"`
}

// UpdateStatusInput carries the raw status so the service owns validation.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
}

// CreateVariantInput creates a SKU variant and its inventory row.
type CreateVariantInput struct {
	SKU               string            `json:"sku" validate:"required,max=64"`
	Name              string            `json:"name" validate:"required"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	Price             decimal.Decimal   `json:"price"`
	Cost              decimal.Decimal   `json:"cost"`
	WeightGrams       int               `json:"weightGrams" validate:"gte=0"`
	InitialStock      int               `json:"initialStock" validate:"gte=0"`
	LowStockThreshold *int              `json:"lowStockThreshold,omitempty" validate:"omitempty,gte=0"`
	ReorderPoint      *int              `json:"reorderPoint,omitempty" validate:"omitempty,gte=0"`
}

// ListProductsInput filters the admin and public catalog listings.
type ListProductsInput struct {
	Status     *enums.ProductStatus
	Category   string
	SupplierID *uuid.UUID
	Query      string
	pagination.Params
}

// VariantWithProduct is a variant joined with its parent product, used to
// validate swag pack contents and snapshot prices.
type VariantWithProduct struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	SKU           string `gorm:"column:sku"`
	Name          string
	Price         decimal.Decimal
	IsActive      bool
	ProductName   string
	ProductStatus enums.ProductStatus
}

// Sellable reports whether the variant can be put into new packs and orders.
func (v VariantWithProduct) Sellable() bool {
	return v.IsActive && v.ProductStatus == enums.ProductStatusActive
}

type ProductListResult struct {
	Products   []models.Product `json:"products"`
	NextCursor string           `json:"nextCursor,omitempty"`
}
