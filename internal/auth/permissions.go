package auth

// Permission represents a named capability in the API.
type Permission string

// Permission constants.
const (
	PermTVRead    Permission = "tv:read"
	PermTVOperate Permission = "tv:operate"
	PermTVPair    Permission = "tv:pair"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermTVRead,
	},
	RoleOperator: {
		PermTVRead,
		PermTVOperate,
	},
	RoleAdmin: {
		PermTVRead,
		PermTVOperate,
		PermTVPair,
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
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
