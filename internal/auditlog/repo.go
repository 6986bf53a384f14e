package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// Repository persists audit rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds an audit repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository scoped to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, row *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListFilter narrows the audit trail. Zero values are ignored.
type ListFilter struct {
	ResourceType string
	ResourceID   string
	ActorID      *uuid.UUID
	Since        *time.Time
}

// List returns rows newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	query, err := pagination.Seek(query, params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.AuditLog
	err = query.Find(&rows).Error
	return rows, err
}
