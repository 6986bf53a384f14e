package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, formula *models.PricingFormula) error {
	return r.db.WithContext(ctx).Create(formula).Error
}

func (r *Repository) Save(ctx context.Context, formula *models.PricingFormula) error {
	return r.db.WithContext(ctx).Save(formula).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PricingFormula, error) {
	var formula models.PricingFormula
	if err := r.db.WithContext(ctx).First(&formula, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &formula, nil
}

// FindActive returns the most recently updated active formula for a product
// type.
func (r *Repository) FindActive(ctx context.Context, productType string) (*models.PricingFormula, error) {
	var formula models.PricingFormula
	err := r.db.WithContext(ctx).
		Where("product_type = ? AND is_active = ?", productType, true).
		Order("updated_at DESC").
		First(&formula).Error
	if err != nil {
		return nil, err
	}
	return &formula, nil
}

func (r *Repository) List(ctx context.Context, productType string, activeOnly bool) ([]models.PricingFormula, error) {
	query := r.db.WithContext(ctx).Model(&models.PricingFormula{})
	if productType != "" {
		query = query.Where("product_type = ?", productType)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.PricingFormula
	err := query.Order("product_type ASC").Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.PricingFormula{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
