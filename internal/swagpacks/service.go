package swagpacks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/products"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

type ItemInput struct {
	SkuVariantID uuid.UUID `json:"skuVariantId" validate:"required"`
	Quantity     int       `json:"quantity" validate:"gt=0"`
}

type PackInput struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description *string     `json:"description,omitempty"`
	Status      string      `json:"status,omitempty"`
	Items       []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// PackView is a pack plus its current per-recipient price.
type PackView struct {
	models.SwagPack
	PackPrice decimal.Decimal `json:"packPrice"`
}

type variantLookup interface {
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]products.VariantWithProduct, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input PackInput) (*PackView, error)
	Get(ctx context.Context, ownerID, packID uuid.UUID) (*PackView, error)
	List(ctx context.Context, ownerID uuid.UUID, status string) ([]PackView, error)
	Update(ctx context.Context, ownerID, packID uuid.UUID, input PackInput) (*PackView, error)
	Delete(ctx context.Context, ownerID, packID uuid.UUID) error
}

type service struct {
	repo     *Repository
	variants variantLookup
	tx       txRunner
}

func NewService(repo *Repository, variants variantLookup, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("swag pack repository required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, variants: variants, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input PackInput) (*PackView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	status := enums.SwagPackActive
	if input.Status != "" {
		parsed, err := enums.ParseSwagPackStatus(strings.ToLower(input.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		status = parsed
	}
	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	pack := &models.SwagPack{
		OwnerID:     ownerID,
		Name:        name,
		Description: input.Description,
		Status:      status,
		Items:       items,
	}
	if err := s.repo.Create(ctx, pack); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create swag pack")
	}
	return s.Get(ctx, ownerID, pack.ID)
}

func (s *service) Get(ctx context.Context, ownerID, packID uuid.UUID) (*PackView, error) {
	pack, err := s.load(ctx, s.repo, ownerID, packID)
	if err != nil {
		return nil, err
	}
	views, err := s.price(ctx, []models.SwagPack{*pack})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID, status string) ([]PackView, error) {
	var filter *enums.SwagPackStatus
	if status != "" {
		parsed, err := enums.ParseSwagPackStatus(strings.ToLower(status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter = &parsed
	}
	packs, err := s.repo.ListOwned(ctx, ownerID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list swag packs")
	}
	return s.price(ctx, packs)
}

func (s *service) Update(ctx context.Context, ownerID, packID uuid.UUID, input PackInput) (*PackView, error) {
	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pack, err := s.load(ctx, repo, ownerID, packID)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(input.Name); name != "" {
			pack.Name = name
		}
		pack.Description = input.Description
		if input.Status != "" {
			status, err := enums.ParseSwagPackStatus(strings.ToLower(input.Status))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
			}
			pack.Status = status
		}
		pack.Items = nil
		if err := repo.Save(ctx, pack); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update swag pack")
		}
		if err := repo.ReplaceItems(ctx, pack.ID, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace swag pack items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerID, packID)
}

// Delete removes a pack that no order references; ordered packs are archived instead.
func (s *service) Delete(ctx context.Context, ownerID, packID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pack, err := s.load(ctx, repo, ownerID, packID)
		if err != nil {
			return err
		}
		orders, err := repo.CountOrders(ctx, pack.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count swag orders")
		}
		if orders > 0 {
			pack.Status = enums.SwagPackArchived
			pack.Items = nil
			if err := repo.Save(ctx, pack); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive swag pack")
			}
			return nil
		}
		if err := repo.Delete(ctx, pack.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete swag pack")
		}
		return nil
	})
}

func (s *service) load(ctx context.Context, repo *Repository, ownerID, packID uuid.UUID) (*models.SwagPack, error) {
	pack, err := repo.FindOwned(ctx, packID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("swag pack", packID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load swag pack")
	}
	return pack, nil
}

// resolveItems merges duplicate variants and rejects anything not currently sellable.
func (s *service) resolveItems(ctx context.Context, inputs []ItemInput) ([]models.SwagPackItem, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a swag pack needs at least one item")
	}
	quantities := make(map[uuid.UUID]int, len(inputs))
	order := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be greater than 0").
				WithDetails(map[string]any{"skuVariantId": in.SkuVariantID.String()})
		}
		if _, seen := quantities[in.SkuVariantID]; !seen {
			order = append(order, in.SkuVariantID)
		}
		quantities[in.SkuVariantID] += in.Quantity
	}

	variants, err := s.variants.FindVariantsByIDs(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	items := make([]models.SwagPackItem, 0, len(order))
	for _, id := range order {
		variant, ok := variants[id]
		if !ok {
			return nil, pkgerrors.NotFound("sku variant", id)
		}
		if !variant.Sellable() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not available").
				WithDetails(map[string]any{"skuVariantId": id.String(), "sku": variant.SKU})
		}
		items = append(items, models.SwagPackItem{
			SkuVariantID: id,
			ProductName:  variant.ProductName,
			Quantity:     quantities[id],
		})
	}
	return items, nil
}

func (s *service) price(ctx context.Context, packs []models.SwagPack) ([]PackView, error) {
	var ids []uuid.UUID
	for _, pack := range packs {
		for _, item := range pack.Items {
			ids = append(ids, item.SkuVariantID)
		}
	}
	variants := map[uuid.UUID]products.VariantWithProduct{}
	if len(ids) > 0 {
		found, err := s.variants.FindVariantsByIDs(ctx, ids)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
		}
		variants = found
	}
	views := make([]PackView, 0, len(packs))
	for _, pack := range packs {
		total := decimal.Zero
		for _, item := range pack.Items {
			total = total.Add(variants[item.SkuVariantID].Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		views = append(views, PackView{SwagPack: pack, PackPrice: total})
	}
	return views, nil
}
