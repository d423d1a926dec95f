package model

// Role is the access level a share link grants. The link owner always
// resolves to RoleEditor regardless of the link's configured role.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor
}

func (r Role) CanEdit() bool {
	return r == RoleEditor
}

// ParseRole normalizes a wire value into a Role; ok is false for anything
// outside the two allowed values.
func ParseRole(value string) (Role, bool) {
	role := Role(value)
	if !role.Valid() {
		return "", false
	}
	return role, true
}
