package auth

import "github.com/delgo-app/delgo-backend/pkg/enums"

// Operation names a privileged API action gated by role.
type Operation string

const (
	OpCheckout          Operation = "checkout.create"
	OpOrderRead         Operation = "orders.read"
	OpShipmentRead      Operation = "shipments.read"
	OpShipmentAccept    Operation = "shipments.accept"
	OpShipmentReject    Operation = "shipments.reject"
	OpShipmentPickup    Operation = "shipments.pickup"
	OpShipmentDepart    Operation = "shipments.depart"
	OpShipmentComplete  Operation = "shipments.complete"
	OpShipmentFail      Operation = "shipments.fail"
	OpShipmentLocation  Operation = "shipments.location"
	OpShipmentAssign    Operation = "shipments.assign"
	OpAgentAvailability Operation = "agents.availability"
	OpAgentEarnings     Operation = "agents.earnings"
	OpNotificationRead  Operation = "notifications.read"
)

// policy is the single source of truth for which roles may invoke which
// operations. Admin is granted implicitly by Allowed.
var policy = map[Operation][]enums.MemberRole{
	OpCheckout:          {enums.RoleCustomer},
	OpOrderRead:         {enums.RoleCustomer, enums.RoleSeller},
	OpShipmentRead:      {enums.RoleCustomer, enums.RoleSeller, enums.RoleAgent},
	OpShipmentAccept:    {enums.RoleAgent},
	OpShipmentReject:    {enums.RoleAgent},
	OpShipmentPickup:    {enums.RoleAgent},
	OpShipmentDepart:    {enums.RoleAgent},
	OpShipmentComplete:  {enums.RoleAgent},
	OpShipmentFail:      {enums.RoleAgent},
	OpShipmentLocation:  {enums.RoleAgent},
	OpShipmentAssign:    {}, // admin only
	OpAgentAvailability: {enums.RoleAgent},
	OpAgentEarnings:     {enums.RoleAgent},
	OpNotificationRead:  {enums.RoleCustomer, enums.RoleSeller, enums.RoleAgent},
}

// Allowed reports whether role may invoke op. Admins may invoke everything.
func Allowed(role enums.MemberRole, op Operation) bool {
	if role == enums.RoleAdmin {
		return true
	}
	for _, candidate := range policy[op] {
		if candidate == role {
			return true
		}
	}
	return false
}
