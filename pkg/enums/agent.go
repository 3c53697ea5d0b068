package enums

import "fmt"

// AgentStatus is the administrative state of a delivery agent profile.
type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "active"
	AgentStatusInactive  AgentStatus = "inactive"
	AgentStatusSuspended AgentStatus = "suspended"
)

var validAgentStatuses = []AgentStatus{
	AgentStatusActive,
	AgentStatusInactive,
	AgentStatusSuspended,
}

// IsValid reports whether the value is a known AgentStatus.
func (a AgentStatus) IsValid() bool {
	for _, candidate := range validAgentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAgentStatus converts raw input into an AgentStatus.
func ParseAgentStatus(value string) (AgentStatus, error) {
	for _, candidate := range validAgentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent status %q", value)
}

// KYCStatus is the verification state of an agent's identity documents.
type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

var validKYCStatuses = []KYCStatus{
	KYCStatusPending,
	KYCStatusApproved,
	KYCStatusRejected,
}

// IsValid reports whether the value is a known KYCStatus.
func (k KYCStatus) IsValid() bool {
	for _, candidate := range validKYCStatuses {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKYCStatus converts raw input into a KYCStatus.
func ParseKYCStatus(value string) (KYCStatus, error) {
	for _, candidate := range validKYCStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid kyc status %q", value)
}

// VehicleType is the vehicle an agent delivers with.
type VehicleType string

const (
	VehicleTypeBike    VehicleType = "bike"
	VehicleTypeScooter VehicleType = "scooter"
	VehicleTypeCar     VehicleType = "car"
	VehicleTypeVan     VehicleType = "van"
)

var validVehicleTypes = []VehicleType{
	VehicleTypeBike,
	VehicleTypeScooter,
	VehicleTypeCar,
	VehicleTypeVan,
}

// IsValid reports whether the value is a known VehicleType.
func (v VehicleType) IsValid() bool {
	for _, candidate := range validVehicleTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleType converts raw input into a VehicleType.
func ParseVehicleType(value string) (VehicleType, error) {
	for _, candidate := range validVehicleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle type %q", value)
}
