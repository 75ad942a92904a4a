package domain

import (
	"strings"
	"time"
)

// UserStatus represents lifecycle states for an application user.
type UserStatus string

const (
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	UserStatusPendingApproval     UserStatus = "PENDING_APPROVAL"
	UserStatusActive              UserStatus = "ACTIVE"
	UserStatusInactive            UserStatus = "INACTIVE"
	UserStatusSuspended           UserStatus = "SUSPENDED"
	UserStatusDeleted             UserStatus = "DELETED"
	UserStatusRejected            UserStatus = "REJECTED"
	UserStatusSyncFailure         UserStatus = "SYNC_FAILURE"
)

// AllUserStatuses lists every status in display order.
var AllUserStatuses = []UserStatus{
	UserStatusPendingVerification,
	UserStatusPendingApproval,
	UserStatusActive,
	UserStatusInactive,
	UserStatusSuspended,
	UserStatusDeleted,
	UserStatusRejected,
	UserStatusSyncFailure,
}

// Description returns the human readable label.
func (s UserStatus) Description() string {
	switch s {
	case UserStatusPendingVerification:
		return "Pending Email Verification"
	case UserStatusPendingApproval:
		return "Pending Administrator Approval"
	case UserStatusActive:
		return "Active"
	case UserStatusInactive:
		return "Inactive"
	case UserStatusSuspended:
		return "Suspended"
	case UserStatusDeleted:
		return "Deleted"
	case UserStatusRejected:
		return "Rejected by Administrator"
	case UserStatusSyncFailure:
		return "Identity Synchronization Failed"
	default:
		return string(s)
	}
}

// LoginAllowed reports whether users in this status may sign in.
func (s UserStatus) LoginAllowed() bool {
	return s == UserStatusActive
}

// IsPending reports whether the account still awaits verification or approval.
func (s UserStatus) IsPending() bool {
	return s == UserStatusPendingVerification || s == UserStatusPendingApproval
}

// RequiresAdminIntervention reports statuses only an administrator can resolve.
func (s UserStatus) RequiresAdminIntervention() bool {
	return s == UserStatusSuspended || s == UserStatusSyncFailure
}

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	for _, known := range AllUserStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// User is the domain model for operators, technicians and administrators.
type User struct {
	ID              string
	ExternalSubject string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	PhoneNumber     string
	EmployeeID      *string
	Department      string
	Status          UserStatus
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Roles holds active role names when loaded alongside the user.
	Roles []string
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserRejection records an administrator rejecting a pending registration.
type UserRejection struct {
	ID             string
	UserID         string
	RejectedBy     string
	Reason         string
	OriginalStatus UserStatus
	RejectedAt     time.Time
}

// EmailVerification is a one-time code sent to confirm a registration email.
type EmailVerification struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the code can still be redeemed at now.
func (v *EmailVerification) Usable(now time.Time) bool {
	return v.UsedAt == nil && now.Before(v.ExpiresAt)
}
