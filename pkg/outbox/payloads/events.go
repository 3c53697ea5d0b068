package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgo-app/delgo-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order carved out of a checkout.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	ShipmentID uuid.UUID       `json:"shipment_id"`
	Total      decimal.Decimal `json:"total"`
}

// ShipmentAssignedEvent is emitted when an agent wins a shipment claim.
type ShipmentAssignedEvent struct {
	ShipmentID uuid.UUID `json:"shipment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	AgentID    uuid.UUID `json:"agent_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ShipmentStatusEvent carries generic lifecycle transitions (accepted,
// rejected, picked up, in transit).
type ShipmentStatusEvent struct {
	ShipmentID uuid.UUID            `json:"shipment_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	AgentID    *uuid.UUID           `json:"agent_id,omitempty"`
	FromStatus enums.ShipmentStatus `json:"from_status"`
	ToStatus   enums.ShipmentStatus `json:"to_status"`
}

// ShipmentDeliveredEvent is emitted when an OTP-confirmed delivery lands.
type ShipmentDeliveredEvent struct {
	ShipmentID  uuid.UUID `json:"shipment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AgentID     uuid.UUID `json:"agent_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// ShipmentFailedEvent is emitted when a shipment is marked failed.
type ShipmentFailedEvent struct {
	ShipmentID uuid.UUID  `json:"shipment_id"`
	OrderID    uuid.UUID  `json:"order_id"`
	AgentID    *uuid.UUID `json:"agent_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// EarningsCreditedEvent reports the settlement written for a delivery.
type EarningsCreditedEvent struct {
	EntryID    uuid.UUID       `json:"entry_id"`
	ShipmentID uuid.UUID       `json:"shipment_id"`
	AgentID    uuid.UUID       `json:"agent_id"`
	NetAmount  decimal.Decimal `json:"net_amount"`
}

// ReservationReleasedEvent reports reserved stock returned to the pool.
type ReservationReleasedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
