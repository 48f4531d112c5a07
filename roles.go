package session

// Role is the backend-resolved authorization role
type Role = string

const (
	// RoleAdmin manages the whole platform
	RoleAdmin Role = "admin"
	// RoleClubManager manages a single club and its events
	RoleClubManager Role = "clubManager"
	// RoleMember is a regular authenticated member
	RoleMember Role = "member"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleClubManager, RoleMember:
		return true
	default:
		return false
	}
}

// AllRoles returns all predefined roles
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleClubManager,
		RoleMember,
	}
}

// ParseRole safely parses a string into a Role. An unknown or empty value
// yields ok=false; callers must treat that as an unset role and deny access.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}
