package kitting

import (
	"context"

	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// QueueFilter selects orders ready for kitting.
type QueueFilter struct {
	KittingStatus *enums.KittingStatus
	ByPriority    bool
	Limit         int
}

// Queue lists paid orders whose production is done and whose packs still
// need assembling.
func (r *Repository) Queue(ctx context.Context, filter QueueFilter) ([]models.SwagOrder, error) {
	kitting := []enums.KittingStatus{enums.KittingPending, enums.KittingInProgress}
	if filter.KittingStatus != nil {
		kitting = []enums.KittingStatus{*filter.KittingStatus}
	}
	q := r.db.WithContext(ctx).
		Model(&models.SwagOrder{}).
		Where("status IN ?", []enums.SwagOrderStatus{enums.SwagOrderPaid, enums.SwagOrderProcessing}).
		Where("production_status = ?", enums.ProductionCompleted).
		Where("production_qc_status IN ?", []enums.QCStatus{enums.QCPassed, enums.QCPending}).
		Where("production_kitting_status IN ?", kitting)
	if filter.ByPriority {
		q = q.Order("scheduled_send_date IS NULL").Order("scheduled_send_date ASC").Order("created_at ASC")
	} else {
		q = q.Order("created_at DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []models.SwagOrder
	err := q.Find(&rows).Error
	return rows, err
}
