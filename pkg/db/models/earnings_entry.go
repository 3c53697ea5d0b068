package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/pkg/enums"
)

// EarningsEntry records the settlement math for one completed delivery.
// ShipmentID is unique: a shipment settles at most once.
type EarningsEntry struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID       uuid.UUID           `gorm:"column:agent_id;type:uuid;not null;index"`
	ShipmentID    uuid.UUID           `gorm:"column:shipment_id;type:uuid;not null;uniqueIndex"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	DistanceKm    decimal.Decimal     `gorm:"column:distance_km;type:numeric(8,2);not null"`
	BaseFee       decimal.Decimal     `gorm:"column:base_fee;type:numeric(12,2);not null"`
	DistanceBonus decimal.Decimal     `gorm:"column:distance_bonus;type:numeric(12,2);not null"`
	PeakBonus     decimal.Decimal     `gorm:"column:peak_bonus;type:numeric(12,2);not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Commission    decimal.Decimal     `gorm:"column:commission;type:numeric(12,2);not null"`
	NetAmount     decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Status        enums.EarningStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ProcessedAt   *time.Time          `gorm:"column:processed_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
