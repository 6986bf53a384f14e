package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

// User is an account for customers and back-office staff alike.
type User struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email             string         `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	PasswordHash      string         `gorm:"column:password_hash;not null" json:"-"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Phone             *string        `gorm:"column:phone" json:"phone,omitempty"`
	Role              enums.UserRole `gorm:"column:role;type:text;not null;default:customer" json:"role"`
	IsActive          bool           `gorm:"column:is_active;not null" json:"isActive"`
	IsVerified        bool           `gorm:"column:is_verified;not null;default:false" json:"isVerified"`
	VerificationToken *string        `gorm:"column:verification_token;uniqueIndex" json:"-"`
	LastLoginAt       *time.Time     `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
