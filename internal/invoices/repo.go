package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

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

func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Preload("Lines").First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *Repository) FindBySource(ctx context.Context, sourceType enums.InvoiceSourceType, sourceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&invoice, "source_type = ? AND source_id = ?", sourceType, sourceID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *Repository) Lock(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *Repository) Save(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(invoice).Error
}

func (r *Repository) CountNumbersWithPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("invoice_number LIKE ?", prefix+"%").Count(&n).Error
	return n, err
}

type ListFilter struct {
	Status     *enums.InvoiceStatus
	SourceType *enums.InvoiceSourceType
	CustomerID *uuid.UUID
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.SourceType != nil {
		q = q.Where("source_type = ?", *filter.SourceType)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	q, err := pagination.Seek(q, params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.Invoice
	err = q.Find(&rows).Error
	return rows, err
}
