package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// ShipmentEvent is the append-only audit trail of shipment transitions.
// Rows are only written by the transaction that won the transition, so the
// trail never records a lost race.
type ShipmentEvent struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShipmentID uuid.UUID             `gorm:"column:shipment_id;type:uuid;not null;index"`
	FromStatus *enums.ShipmentStatus `gorm:"column:from_status;type:text"`
	ToStatus   enums.ShipmentStatus  `gorm:"column:to_status;type:text;not null"`
	ActorID    *uuid.UUID            `gorm:"column:actor_id;type:uuid"`
	Note       *string               `gorm:"column:note"`
	Location   *types.LatLng         `gorm:"column:location;type:jsonb;serializer:json"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
