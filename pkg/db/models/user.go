package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// User represents the canonical identity entity across all marketplace roles.
type User struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name           string           `gorm:"column:name;not null"`
	Phone          *string          `gorm:"column:phone"`
	Role           enums.MemberRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	DefaultAddress *types.Address   `gorm:"column:default_address;type:jsonb;serializer:json"`
	LastLoginAt    *time.Time       `gorm:"column:last_login_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
