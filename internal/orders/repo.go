package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a print order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.PrintOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PrintOrder, error) {
	var order models.PrintOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.PrintOrder, error) {
	return r.lockWhere(ctx, "id = ?", id)
}

func (r *repository) LockByPaymentCode(ctx context.Context, code int64) (*models.PrintOrder, error) {
	return r.lockWhere(ctx, "payment_order_code = ?", code)
}

func (r *repository) lockWhere(ctx context.Context, query string, arg any) (*models.PrintOrder, error) {
	var order models.PrintOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, query, arg).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.PrintOrder, error) {
	q := r.db.WithContext(ctx).Model(&models.PrintOrder{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if s := strings.TrimSpace(filter.Query); s != "" {
		q = q.Where("LOWER(order_number) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	q, err := pagination.Seek(q, params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.PrintOrder
	err = q.Find(&rows).Error
	return rows, err
}

func (r *repository) Save(ctx context.Context, order *models.PrintOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *repository) CountNumbersWithPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PrintOrder{}).Where("order_number LIKE ?", prefix+"%").Count(&n).Error
	return n, err
}
