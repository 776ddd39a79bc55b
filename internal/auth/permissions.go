package auth

// Permission represents a named capability in the API.
type Permission string

// Permission constants.
const (
	PermStateRead   Permission = "state:read"
	PermModeOperate Permission = "mode:operate"
	PermHistoryRead Permission = "history:read"
	PermSystemRead  Permission = "system:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleOperator: {
		PermStateRead,
		PermModeOperate,
		PermHistoryRead,
		PermSystemRead,
	},
	RolePanel: {
		PermStateRead,
		PermModeOperate,
	},
}

// HasPermission reports whether role grants perm. Unknown roles have none.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role,
// or nil for an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
