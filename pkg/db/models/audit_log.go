package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/types"
)

type AuditLog struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ActorID      *uuid.UUID                 `gorm:"column:actor_id;type:uuid;index" json:"actorId,omitempty"`
	ActorRole    string                     `gorm:"column:actor_role;not null;default:''" json:"actorRole"`
	Action       string                     `gorm:"column:action;not null" json:"action"`
	ResourceType string                     `gorm:"column:resource_type;not null;index" json:"resourceType"`
	ResourceID   string                     `gorm:"column:resource_id;not null" json:"resourceId"`
	Details      types.JSON[map[string]any] `gorm:"column:details;type:jsonb" json:"details"`
	IPAddress    *string                    `gorm:"column:ip_address" json:"ipAddress,omitempty"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
