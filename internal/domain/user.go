package domain

import (
	"time"
)

// Role gates API access. Admins manage rules and users, analysts may
// create transactions and work alerts, viewers are read-only.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleAnalyst Role = "Analyst"
	RoleViewer  Role = "Viewer"
)

// ValidRole reports whether r is a recognized role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAnalyst, RoleViewer:
		return true
	}
	return false
}

// User is an operator of the management application.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AuditEntry records a mutating operation for the audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	Detail    string    `json:"detail,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
