package dto

import (
	"time"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// RegistrationRequest is the sign-up form, posted as a form or JSON.
type RegistrationRequest struct {
	Email       string `form:"email" json:"email" validate:"required,email"`
	FirstName   string `form:"firstName" json:"firstName" validate:"required,min=2,max=50"`
	LastName    string `form:"lastName" json:"lastName" validate:"required,min=2,max=50"`
	Password    string `form:"password" json:"password" validate:"required,min=8,max=128,strongpassword"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber" validate:"required,phone"`
	EmployeeID  string `form:"employeeId" json:"employeeId"`
	Department  string `form:"department" json:"department"`
}

// VerifyEmailRequest redeems a verification code.
type VerifyEmailRequest struct {
	Email            string `form:"email" json:"email" validate:"required,email"`
	VerificationCode string `form:"verificationCode" json:"verificationCode" validate:"required"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MeResponse describes the signed-in user and what they may do.
type MeResponse struct {
	User           UserResponse `json:"user"`
	HighestRole    string       `json:"highestRole"`
	Admin          bool         `json:"admin"`
	CanManageUsers bool         `json:"canManageUsers"`
	Permissions    []string     `json:"permissions"`
}

// ApproveUserRequest grants the initial roles.
type ApproveUserRequest struct {
	RoleIDs []string `json:"roleIds" validate:"required,min=1,dive,required"`
}

// ReasonRequest carries a mandatory reason.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	FirstName         string            `json:"firstName"`
	LastName          string            `json:"lastName"`
	FullName          string            `json:"fullName"`
	PhoneNumber       string            `json:"phoneNumber,omitempty"`
	EmployeeID        *string           `json:"employeeId,omitempty"`
	Department        string            `json:"department,omitempty"`
	Status            domain.UserStatus `json:"status"`
	StatusDescription string            `json:"statusDescription"`
	Roles             []string          `json:"roles,omitempty"`
	LastLoginAt       *time.Time        `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		FullName:          u.FullName(),
		PhoneNumber:       u.PhoneNumber,
		EmployeeID:        u.EmployeeID,
		Department:        u.Department,
		Status:            u.Status,
		StatusDescription: u.Status.Description(),
		Roles:             u.Roles,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// UserRoleResponse describes a role grant.
type UserRoleResponse struct {
	ID         string                `json:"id"`
	UserID     string                `json:"userId"`
	RoleID     string                `json:"roleId"`
	RoleName   string                `json:"roleName"`
	Status     domain.UserRoleStatus `json:"status"`
	AssignedBy *string               `json:"assignedBy,omitempty"`
	AssignedAt time.Time             `json:"assignedAt"`
}

// NewUserRoleResponse maps a grant.
func NewUserRoleResponse(g *domain.UserRole) UserRoleResponse {
	return UserRoleResponse{
		ID:         g.ID,
		UserID:     g.UserID,
		RoleID:     g.RoleID,
		RoleName:   g.RoleName,
		Status:     g.Status,
		AssignedBy: g.AssignedBy,
		AssignedAt: g.AssignedAt,
	}
}
