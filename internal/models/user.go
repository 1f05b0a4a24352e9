package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleUser       UserRole = "user"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUser:
		return true
	}
	return false
}

// IsModerator is true for roles allowed to move question status.
func (r UserRole) IsModerator() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

// User represents an application user stored in the users table.
// SupervisorType is informational only and never used for access decisions.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Role           UserRole  `db:"role" json:"role"`
	SupervisorType *string   `db:"supervisor_type" json:"supervisor_type,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Search string
	Limit  int
	Offset int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"total_count"`
}
