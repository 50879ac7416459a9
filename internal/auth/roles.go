package auth

// User roles, ordered by privilege.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

var roleRanks = map[string]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// RoleRank returns the numeric rank of a role; unknown roles rank 0.
func RoleRank(role string) int {
	return roleRanks[role]
}

// RoleAtLeast reports whether role meets or exceeds the required role.
func RoleAtLeast(role, required string) bool {
	return RoleRank(role) >= RoleRank(required)
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := roleRanks[role]
	return ok
}
