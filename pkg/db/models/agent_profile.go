package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/delgo-app/delgo-backend/pkg/db/types"
	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// AgentProfile carries the delivery agent's dispatch state: availability,
// last reported location, active assignments and running earnings totals.
type AgentProfile struct {
	UserID               uuid.UUID          `gorm:"column:user_id;type:uuid;primaryKey"`
	Status               enums.AgentStatus  `gorm:"column:status;type:text;not null;default:'active'"`
	KYCStatus            enums.KYCStatus    `gorm:"column:kyc_status;type:text;not null;default:'pending'"`
	VehicleType          enums.VehicleType  `gorm:"column:vehicle_type;type:text;not null;default:'bike'"`
	IsOnline             bool               `gorm:"column:is_online;not null;default:false"`
	IsAvailable          bool               `gorm:"column:is_available;not null;default:false"`
	CurrentLocation      *types.TimedLatLng `gorm:"column:current_location;type:jsonb;serializer:json"`
	ActiveShipmentIDs    dbtypes.UUIDArray  `gorm:"column:active_shipment_ids;type:uuid[];not null;default:ARRAY[]::uuid[]"`
	CompletedShipmentIDs dbtypes.UUIDArray  `gorm:"column:completed_shipment_ids;type:uuid[];not null;default:ARRAY[]::uuid[]"`
	TotalDeliveries      int                `gorm:"column:total_deliveries;not null;default:0"`
	CompletedDeliveries  int                `gorm:"column:completed_deliveries;not null;default:0"`
	TotalEarnings        decimal.Decimal    `gorm:"column:total_earnings;type:numeric(12,2);not null;default:0"`
	PendingBalance       decimal.Decimal    `gorm:"column:pending_balance;type:numeric(12,2);not null;default:0"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
