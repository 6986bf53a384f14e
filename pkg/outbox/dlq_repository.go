package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

const maxDLQErrorLen = 1024

// DeadLetterFilter narrows a dead-letter listing. Zero values match everything.
type DeadLetterFilter struct {
	EventType   enums.OutboxEventType
	Reason      enums.OutboxDLQErrorReason
	AggregateID *uuid.UUID
}

// DLQRepository stores outbox events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx parks entry. Parking the same outbox event twice keeps the first row.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// List pages through parked events, most recent failure first.
func (r *DLQRepository) List(ctx context.Context, filter DeadLetterFilter, params pagination.Params) ([]models.OutboxDLQ, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Reason != "" {
		query = query.Where("error_reason = ?", filter.Reason)
	}
	if filter.AggregateID != nil {
		query = query.Where("aggregate_id = ?", *filter.AggregateID)
	}
	query, err := pagination.Seek(query, params, "failed_at")
	if err != nil {
		return nil, err
	}
	var rows []models.OutboxDLQ
	err = query.Find(&rows).Error
	return rows, err
}

// LockTx loads one parked event, holding a row lock on Postgres until tx ends.
// A missing row is reported as gorm.ErrRecordNotFound.
func (r *DLQRepository) LockTx(tx *gorm.DB, id uuid.UUID) (models.OutboxDLQ, error) {
	q := tx
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.OutboxDLQ
	err := q.Where("id = ?", id).First(&row).Error
	return row, err
}

func (r *DLQRepository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Where("id = ?", id).Delete(&models.OutboxDLQ{}).Error
}
