package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateCheckoutGroup OutboxAggregateType = "checkout_group"
	AggregateShipment      OutboxAggregateType = "shipment"
	AggregateAgent         OutboxAggregateType = "agent"
	AggregateEarningsEntry OutboxAggregateType = "earnings_entry"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckoutGroup,
	AggregateShipment,
	AggregateAgent,
	AggregateEarningsEntry,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventShipmentAssigned    OutboxEventType = "shipment_assigned"
	EventShipmentAccepted    OutboxEventType = "shipment_accepted"
	EventShipmentRejected    OutboxEventType = "shipment_rejected"
	EventShipmentPickedUp    OutboxEventType = "shipment_picked_up"
	EventShipmentInTransit   OutboxEventType = "shipment_in_transit"
	EventShipmentDelivered   OutboxEventType = "shipment_delivered"
	EventShipmentFailed      OutboxEventType = "shipment_failed"
	EventEarningsCredited    OutboxEventType = "earnings_credited"
	EventReservationReleased OutboxEventType = "reservation_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventShipmentAssigned,
	EventShipmentAccepted,
	EventShipmentRejected,
	EventShipmentPickedUp,
	EventShipmentInTransit,
	EventShipmentDelivered,
	EventShipmentFailed,
	EventEarningsCredited,
	EventReservationReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
