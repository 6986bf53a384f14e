package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/auditlog"
	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/pagination"
	"github.com/printz/fulfillment-backend/pkg/types"
)

const defaultLowStockThreshold = 5

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	UpdateStatus(ctx context.Context, actor auditlog.Actor, id uuid.UUID, rawStatus string) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListActiveProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*models.SkuVariant, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]models.SkuVariant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo  *Repository
	tx    txRunner
	audit auditlog.Recorder
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx txRunner, audit auditlog.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, tx: tx, audit: audit}, nil
}

// CreateProduct derives the slug from the name when absent. New products
// start as drafts unless a valid status is supplied.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.BasePrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basePrice must not be negative")
	}
	status := enums.ProductStatusDraft
	if strings.TrimSpace(input.Status) != "" {
		parsed, err := parseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug could not be derived from name")
	}
	if err := s.ensureSlugFree(ctx, slug, nil); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		Category:    strings.TrimSpace(input.Category),
		SupplierID:  input.SupplierID,
		BasePrice:   input.BasePrice,
		Status:      status,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		product.Name = name
	}
	if input.Slug != nil {
		slug := Slugify(*input.Slug)
		if slug == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must not be empty")
		}
		if slug != product.Slug {
			if err := s.ensureSlugFree(ctx, slug, &product.ID); err != nil {
				return nil, err
			}
			product.Slug = slug
		}
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.SupplierID != nil {
		product.SupplierID = input.SupplierID
	}
	if input.BasePrice != nil {
		if input.BasePrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "basePrice must not be negative")
		}
		product.BasePrice = *input.BasePrice
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return product, nil
}

// UpdateStatus rejects anything outside the product status set with a
// validation error before touching the database.
func (s *service) UpdateStatus(ctx context.Context, actor auditlog.Actor, id uuid.UUID, rawStatus string) (*models.Product, error) {
	status, err := parseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var previous enums.ProductStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("product", id)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		previous = current.Status
		if _, err := txRepo.UpdateStatus(ctx, id, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product status")
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			Actor:        actor,
			Action:       auditlog.ActionProductStatusChanged,
			ResourceType: "product",
			ResourceID:   id.String(),
			Details: map[string]any{
				"from": string(previous),
				"to":   string(status),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if !ok {
		return pkgerrors.NotFound("product", id)
	}
	return nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list products")
	}
	page, next := pagination.TrimPage(rows, input.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &ProductListResult{Products: page, NextCursor: next}, nil
}

// ListActiveProducts is the public storefront listing.
func (s *service) ListActiveProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	active := enums.ProductStatusActive
	input.Status = &active
	input.SupplierID = nil
	return s.ListProducts(ctx, input)
}

// CreateVariant inserts the variant and its inventory row in one transaction.
func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*models.SkuVariant, error) {
	sku := strings.ToUpper(strings.TrimSpace(input.SKU))
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Price.IsNegative() || input.Cost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price and cost must not be negative")
	}
	if input.InitialStock < 0 || input.WeightGrams < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initialStock and weightGrams must not be negative")
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	threshold := defaultLowStockThreshold
	if input.LowStockThreshold != nil {
		threshold = *input.LowStockThreshold
	}
	reorder := threshold * 2
	if input.ReorderPoint != nil {
		reorder = *input.ReorderPoint
	}

	variant := &models.SkuVariant{
		ProductID:   productID,
		SKU:         sku,
		Name:        strings.TrimSpace(input.Name),
		Attributes:  types.NewJSON(input.Attributes),
		Price:       input.Price,
		Cost:        input.Cost,
		WeightGrams: input.WeightGrams,
		IsActive:    true,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		exists, err := txRepo.SKUExists(ctx, sku)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check sku")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		if err := txRepo.CreateVariant(ctx, variant); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert variant")
		}
		item := &models.InventoryItem{
			SkuVariantID:      variant.ID,
			OnHand:            input.InitialStock,
			ReorderPoint:      reorder,
			LowStockThreshold: threshold,
			UnitCost:          input.Cost,
		}
		if err := txRepo.CreateInventoryItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert inventory item")
		}
		variant.Inventory = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.SkuVariant, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list variants")
	}
	return rows, nil
}

func (s *service) ensureSlugFree(ctx context.Context, slug string, exclude *uuid.UUID) error {
	exists, err := s.repo.SlugExists(ctx, slug, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check slug")
	}
	if exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
	}
	return nil
}

func parseStatus(raw string) (enums.ProductStatus, error) {
	status, err := enums.ParseProductStatus(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid product status").
			WithDetails(map[string]any{"allowed": enums.Values(enums.ValidProductStatuses)})
	}
	return status, nil
}
