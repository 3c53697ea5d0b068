package enums

import "fmt"

// MemberRole identifies which side of the marketplace the caller acts for.
type MemberRole string

const (
	RoleCustomer MemberRole = "customer"
	RoleSeller   MemberRole = "seller"
	RoleAgent    MemberRole = "delivery_agent"
	RoleAdmin    MemberRole = "admin"
)

var validMemberRoles = []MemberRole{
	RoleCustomer,
	RoleSeller,
	RoleAgent,
	RoleAdmin,
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
