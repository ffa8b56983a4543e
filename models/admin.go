package models

// Roles recognized by the access layer. Any role other than RoleAdmin,
// including case or whitespace variants of it, is a standard self-scoped role.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && IsAdminRole(u.Role)
}

// IsAdminRole reports whether role is exactly RoleAdmin.
func IsAdminRole(role string) bool {
	return role == RoleAdmin
}
