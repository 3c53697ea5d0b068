package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/enums"
)

// CartRecord is the customer-scoped active cart. Checkout drains it into
// per-seller orders and clears the items.
type CartRecord struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID   uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	Currency     enums.Currency `gorm:"column:currency;type:text;not null;default:'INR'"`
	Items        []CartItem     `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CheckedOutAt *time.Time     `gorm:"column:checked_out_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
