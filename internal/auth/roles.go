package auth

import "strings"

// Role is the access level carried by a token.
type Role string

const (
	// RoleViewer may read market, household and simulation state.
	RoleViewer Role = "viewer"
	// RoleResident may additionally trade on behalf of its household.
	RoleResident Role = "resident"
	// RoleOperator may additionally control devices, trigger shedding
	// and manage simulations.
	RoleOperator Role = "operator"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleResident: 2,
	RoleOperator: 3,
}

// NormalizeRole lowercases and validates a role string.
func NormalizeRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := roleRank[role]
	return role, ok
}

// RoleAtLeast reports whether have meets or exceeds want.
func RoleAtLeast(have, want Role) bool {
	return roleRank[have] >= roleRank[want]
}
