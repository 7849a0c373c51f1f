package entity

// Role is the access level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a verified identity as seen by the application.
// Users are created and authenticated outside this service; URLs only
// reference them through OwnerID.
type User struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
