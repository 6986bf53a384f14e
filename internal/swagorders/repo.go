package swagorders

import (
	"context"
	"strings"

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

func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Create inserts the order together with its recipients.
func (r *Repository) Create(ctx context.Context, order *models.SwagOrder) error {
	return r.db.WithContext(ctx).Omit("SwagPack").Create(order).Error
}

func recipientsOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SwagOrder, error) {
	var order models.SwagOrder
	err := r.db.WithContext(ctx).
		Preload("Recipients", recipientsOrdered).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Lock reads the order row FOR UPDATE without associations.
func (r *Repository) Lock(ctx context.Context, id uuid.UUID) (*models.SwagOrder, error) {
	var order models.SwagOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) LockByPaymentCode(ctx context.Context, code int64) (*models.SwagOrder, error) {
	var order models.SwagOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "payment_order_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListFilter narrows order listings. A nil CustomerID lists every customer.
type ListFilter struct {
	CustomerID *uuid.UUID
	Status     *enums.SwagOrderStatus
	Query      string
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.SwagOrder, error) {
	q := r.db.WithContext(ctx).Model(&models.SwagOrder{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if s := strings.TrimSpace(filter.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(order_number) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	q, err := pagination.Seek(q, params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.SwagOrder
	err = q.Find(&rows).Error
	return rows, err
}

func (r *Repository) Save(ctx context.Context, order *models.SwagOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *Repository) CountNumbersWithPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.SwagOrder{}).Where("order_number LIKE ?", prefix+"%").Count(&n).Error
	return n, err
}

func (r *Repository) CreateRecipients(ctx context.Context, recipients []models.RecipientShipment) error {
	if len(recipients) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&recipients).Error
}

func (r *Repository) ListRecipients(ctx context.Context, orderID uuid.UUID) ([]models.RecipientShipment, error) {
	var rows []models.RecipientShipment
	err := recipientsOrdered(r.db.WithContext(ctx).Where("swag_order_id = ?", orderID)).Find(&rows).Error
	return rows, err
}

func (r *Repository) FindRecipient(ctx context.Context, orderID, recipientID uuid.UUID) (*models.RecipientShipment, error) {
	var row models.RecipientShipment
	err := r.db.WithContext(ctx).First(&row, "id = ? AND swag_order_id = ?", recipientID, orderID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindRecipientByTracking(ctx context.Context, tracking string) (*models.RecipientShipment, error) {
	var row models.RecipientShipment
	err := r.db.WithContext(ctx).First(&row, "tracking_number = ?", tracking).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) SaveRecipient(ctx context.Context, recipient *models.RecipientShipment) error {
	return r.db.WithContext(ctx).Save(recipient).Error
}

func (r *Repository) DeleteRecipient(ctx context.Context, orderID, recipientID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.RecipientShipment{}, "id = ? AND swag_order_id = ?", recipientID, orderID)
	return res.RowsAffected > 0, res.Error
}

// SetRecipientStatus moves every recipient of the order currently in one of
// from to status to.
func (r *Repository) SetRecipientStatus(ctx context.Context, orderID uuid.UUID, from []enums.RecipientStatus, to enums.RecipientStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.RecipientShipment{}).
		Where("swag_order_id = ? AND status IN ?", orderID, from).
		Update("status", to).Error
}

// RecomputeStats rebuilds the recipient counters and rolls the order status
// up from recipient statuses.
func (r *Repository) RecomputeStats(ctx context.Context, orderID uuid.UUID) (*models.SwagOrder, error) {
	order, err := r.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	recipients, err := r.ListRecipients(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Stats = Stats(recipients)
	order.TotalRecipients = len(recipients)
	order.Status = RollupStatus(order.Status, recipients)
	err = r.db.WithContext(ctx).
		Model(&models.SwagOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"stats_pending_info": order.Stats.PendingInfo,
			"stats_processing":   order.Stats.Processing,
			"stats_shipped":      order.Stats.Shipped,
			"stats_delivered":    order.Stats.Delivered,
			"stats_failed":       order.Stats.Failed,
			"total_recipients":   order.TotalRecipients,
			"status":             order.Status,
		}).Error
	if err != nil {
		return nil, err
	}
	order.Recipients = recipients
	return order, nil
}
