package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// SupplierInput is shared by create and full update.
type SupplierInput struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Code            string  `json:"code" validate:"required,max=32"`
	Type            string  `json:"type" validate:"required"`
	ContactName     *string `json:"contactName,omitempty"`
	ContactEmail    *string `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone    *string `json:"contactPhone,omitempty"`
	Address         *string `json:"address,omitempty"`
	LeadTimeMinDays int     `json:"leadTimeMinDays" validate:"gte=0"`
	LeadTimeMaxDays int     `json:"leadTimeMaxDays" validate:"gte=0"`
	Rating          float64 `json:"rating" validate:"gte=0,lte=5"`
	IsActive        *bool   `json:"isActive,omitempty"`
	IsPreferred     bool    `json:"isPreferred"`
	Notes           *string `json:"notes,omitempty"`
}

type ListParams struct {
	Type          *enums.SupplierType
	ActiveOnly    bool
	PreferredOnly bool
	Query         string
	pagination.Params
}

type ListResult struct {
	Suppliers  []models.Supplier `json:"suppliers"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

type Service interface {
	Create(ctx context.Context, input SupplierInput) (*models.Supplier, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	Update(ctx context.Context, id uuid.UUID, input SupplierInput) (*models.Supplier, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("supplier repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input SupplierInput) (*models.Supplier, error) {
	supplier := &models.Supplier{}
	if err := applyInput(supplier, input); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, supplier.Code, nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "supplier code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert supplier")
	}
	return supplier, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("supplier", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load supplier")
	}
	return supplier, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input SupplierInput) (*models.Supplier, error) {
	supplier, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyInput(supplier, input); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, supplier.Code, &supplier.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, supplier); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "supplier code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update supplier")
	}
	return supplier, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete supplier")
	}
	if !ok {
		return pkgerrors.NotFound("supplier", id)
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list suppliers")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(row models.Supplier) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &ListResult{Suppliers: page, NextCursor: next}, nil
}

func (s *service) ensureCodeFree(ctx context.Context, code string, exclude *uuid.UUID) error {
	taken, err := s.repo.CodeTaken(ctx, code, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check supplier code")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "supplier code already exists")
	}
	return nil
}

func applyInput(supplier *models.Supplier, input SupplierInput) error {
	name := strings.TrimSpace(input.Name)
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if name == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and code are required")
	}
	supplierType, err := enums.ParseSupplierType(input.Type)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid supplier type").
			WithDetails(map[string]any{"allowed": enums.Values(enums.ValidSupplierTypes)})
	}
	if input.Rating < 0 || input.Rating > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 0 and 5")
	}
	if input.LeadTimeMinDays < 0 || input.LeadTimeMaxDays < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "lead times must not be negative")
	}
	if input.LeadTimeMaxDays > 0 && input.LeadTimeMaxDays < input.LeadTimeMinDays {
		return pkgerrors.New(pkgerrors.CodeValidation, "leadTimeMaxDays must be at least leadTimeMinDays")
	}

	supplier.Name = name
	supplier.Code = code
	supplier.Type = supplierType
	supplier.ContactName = input.ContactName
	supplier.ContactEmail = input.ContactEmail
	supplier.ContactPhone = input.ContactPhone
	supplier.Address = input.Address
	supplier.LeadTimeMinDays = input.LeadTimeMinDays
	supplier.LeadTimeMaxDays = input.LeadTimeMaxDays
	supplier.Rating = input.Rating
	supplier.IsPreferred = input.IsPreferred
	supplier.Notes = input.Notes
	if input.IsActive != nil {
		supplier.IsActive = *input.IsActive
	} else if supplier.ID == uuid.Nil {
		supplier.IsActive = true
	}
	return nil
}
