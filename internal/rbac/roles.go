package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleMember = "member"
	// RoleSupport can read any user's quota usage but cannot reset it.
	RoleSupport = "support"
	RoleAdmin   = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleMember, RoleSupport, RoleAdmin:
		return true
	}
	return false
}
