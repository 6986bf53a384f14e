package swagpacks

import (
	"context"

	"github.com/google/uuid"
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

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, pack *models.SwagPack) error {
	return r.db.WithContext(ctx).Create(pack).Error
}

// FindOwned loads a pack with its items; packs of other owners read as missing.
func (r *Repository) FindOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.SwagPack, error) {
	var pack models.SwagPack
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *Repository) ListOwned(ctx context.Context, ownerID uuid.UUID, status *enums.SwagPackStatus) ([]models.SwagPack, error) {
	q := r.db.WithContext(ctx).Preload("Items").Where("owner_id = ?", ownerID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var packs []models.SwagPack
	err := q.Order("created_at DESC").Find(&packs).Error
	return packs, err
}

func (r *Repository) Save(ctx context.Context, pack *models.SwagPack) error {
	return r.db.WithContext(ctx).Omit("Items").Save(pack).Error
}

// ReplaceItems swaps the pack contents wholesale.
func (r *Repository) ReplaceItems(ctx context.Context, packID uuid.UUID, items []models.SwagPackItem) error {
	if err := r.db.WithContext(ctx).Where("pack_id = ?", packID).Delete(&models.SwagPackItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].PackID = packID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) CountOrders(ctx context.Context, packID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.SwagOrder{}).Where("swag_pack_id = ?", packID).Count(&n).Error
	return n, err
}

func (r *Repository) Delete(ctx context.Context, packID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("pack_id = ?", packID).Delete(&models.SwagPackItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.SwagPack{}, "id = ?", packID).Error
}
