package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/pkg/enums"
	"github.com/delgo-app/delgo-backend/pkg/types"
)

// Shipment is the delivery leg of exactly one order. Status moves through a
// guarded state machine and assignment is claimed atomically, so there is
// never more than one active agent.
type Shipment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingNumber    string                `gorm:"column:tracking_number;not null;uniqueIndex"`
	Status            enums.ShipmentStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryAgentID   *uuid.UUID            `gorm:"column:delivery_agent_id;type:uuid;index"`
	CourierPartner    *string               `gorm:"column:courier_partner"`
	OTPCode           string                `gorm:"column:otp_code;not null"`
	CustomerName      string                `gorm:"column:customer_name;not null"`
	CustomerPhone     *string               `gorm:"column:customer_phone"`
	PickupAddress     *types.Address        `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	DeliveryAddress   *types.Address        `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	CurrentLocation   *types.TimedLatLng    `gorm:"column:current_location;type:jsonb;serializer:json"`
	DistanceKm        decimal.Decimal       `gorm:"column:distance_km;type:numeric(8,2);not null"`
	EstimatedDelivery *time.Time            `gorm:"column:estimated_delivery"`
	AssignedAt        *time.Time            `gorm:"column:assigned_at"`
	AcceptedAt        *time.Time            `gorm:"column:accepted_at"`
	PickupTime        *time.Time            `gorm:"column:pickup_time"`
	DeliveredTime     *time.Time            `gorm:"column:delivered_time"`
	ProofSignature    *string               `gorm:"column:proof_signature"`
	ProofVerifiedAt   *time.Time            `gorm:"column:proof_verified_at"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	Events            []ShipmentEvent       `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
