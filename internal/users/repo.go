package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/db/models"
	"github.com/printz/fulfillment-backend/pkg/enums"
	"github.com/printz/fulfillment-backend/pkg/pagination"
)

// Repository reads and writes accounts. Lookups return gorm.ErrRecordNotFound
// unchanged so services can map it to their own error.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches case-insensitively; emails are stored lower-cased.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.first(ctx, "verification_token = ? AND is_verified = ?", token, false)
}

// MarkVerified sets is_verified and clears the one-time token.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.update(ctx, id, map[string]any{"is_verified": true, "verification_token": nil})
	return err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.update(ctx, id, map[string]any{"last_login_at": at})
	return err
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.update(ctx, id, map[string]any{"password_hash": hash})
	return err
}

// SetActive reports false when no account has id.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	n, err := r.update(ctx, id, map[string]any{"is_active": active})
	return n > 0, err
}

// List pages newest first, optionally narrowed to one role.
func (r *Repository) List(ctx context.Context, role *enums.UserRole, params pagination.Params) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	query, err := pagination.Seek(query, params, "created_at")
	if err != nil {
		return nil, err
	}
	var rows []models.User
	return rows, query.Find(&rows).Error
}

func (r *Repository) first(ctx context.Context, where string, args ...any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(where, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// update writes columns directly, skipping hooks and updated_at bumps that
// bookkeeping columns like last_login_at should not trigger.
func (r *Repository) update(ctx context.Context, id uuid.UUID, columns map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(columns)
	return res.RowsAffected, res.Error
}
