package domain

import "time"

// RoleStatus enumerates whether a role can be granted.
type RoleStatus string

const (
	RoleStatusActive   RoleStatus = "ACTIVE"
	RoleStatusInactive RoleStatus = "INACTIVE"
)

// Well-known role names, highest privilege first.
const (
	RoleAdmin       = "ADMIN"
	RoleSupervisor  = "SUPERVISOR"
	RoleTechnician  = "TECHNICIAN"
	RoleViewer      = "VIEWER"
	RolePendingUser = "PENDING_USER"
	RoleNone        = "NO_ROLE"
)

// RoleHierarchy orders role names from most to least privileged.
var RoleHierarchy = []string{RoleAdmin, RoleSupervisor, RoleTechnician, RoleViewer, RolePendingUser}

// Role models an application role.
type Role struct {
	ID          string
	Name        string
	Description string
	Status      RoleStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRoleStatus represents the state of a role grant.
type UserRoleStatus string

const (
	UserRoleStatusActive   UserRoleStatus = "ACTIVE"
	UserRoleStatusInactive UserRoleStatus = "INACTIVE"
	UserRoleStatusRevoked  UserRoleStatus = "REVOKED"
)

// UserRole joins users to roles.
type UserRole struct {
	ID         string
	UserID     string
	RoleID     string
	RoleName   string
	AssignedBy *string
	AssignedAt time.Time
	ExpiresAt  *time.Time
	Status     UserRoleStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt reports whether the grant is in force at now.
func (ur *UserRole) ActiveAt(now time.Time) bool {
	if ur.Status != UserRoleStatusActive {
		return false
	}
	return ur.ExpiresAt == nil || now.Before(*ur.ExpiresAt)
}
