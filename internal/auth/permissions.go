package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermLayoutRead     Permission = "layout:read"
	PermLocoOperate    Permission = "loco:operate"
	PermAutomode       Permission = "automode:control"
	PermLayoutOperate  Permission = "layout:operate"
	PermBooster        Permission = "system:booster"
	PermSystemSnapshot Permission = "system:snapshot"
	PermAuditRead      Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleObserver: {
		PermLayoutRead,
	},
	RoleOperator: {
		PermLayoutRead,
		PermLocoOperate,
		PermAutomode,
		PermLayoutOperate,
		PermBooster,
		PermSystemSnapshot,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
