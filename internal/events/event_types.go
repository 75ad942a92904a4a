package events

import (
	"time"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user.registered"
	EventUserEmailVerified EventType = "user.email_verified"
	EventUserApproved      EventType = "user.approved"
	EventUserRejected      EventType = "user.rejected"
	EventUserStatusChanged EventType = "user.status_changed"
	EventUserRoleAssigned  EventType = "user.role_assigned"
	EventUserRoleRevoked   EventType = "user.role_revoked"

	EventJobCardCreated       EventType = "jobcard.created"
	EventJobCardAssigned      EventType = "jobcard.assigned"
	EventJobCardUnassigned    EventType = "jobcard.unassigned"
	EventJobCardStatusChanged EventType = "jobcard.status_changed"
	EventJobCardCompleted     EventType = "jobcard.completed"
)

// AllEventTypes lists every published event type.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventUserEmailVerified,
	EventUserApproved,
	EventUserRejected,
	EventUserStatusChanged,
	EventUserRoleAssigned,
	EventUserRoleRevoked,
	EventJobCardCreated,
	EventJobCardAssigned,
	EventJobCardUnassigned,
	EventJobCardStatusChanged,
	EventJobCardCompleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
	Payload   any       `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email                     string            `json:"email"`
	Status                    domain.UserStatus `json:"status"`
	EmailVerificationRequired bool              `json:"email_verification_required"`
}

// UserEmailVerifiedPayload payload.
type UserEmailVerifiedPayload struct {
	Email string `json:"email"`
}

// UserApprovedPayload payload.
type UserApprovedPayload struct {
	Email     string   `json:"email"`
	RoleNames []string `json:"role_names"`
}

// UserRejectedPayload payload.
type UserRejectedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	Email     string            `json:"email"`
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
	Reason    string            `json:"reason,omitempty"`
}

// UserRoleChangedPayload is shared by role assignment and revocation.
type UserRoleChangedPayload struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
}

// JobCardCreatedPayload payload.
type JobCardCreatedPayload struct {
	JobNumber  string          `json:"job_number"`
	Title      string          `json:"title"`
	TemplateID string          `json:"template_id"`
	Priority   domain.Priority `json:"priority"`
}

// JobCardAssignedPayload payload.
type JobCardAssignedPayload struct {
	JobNumber        string  `json:"job_number"`
	AssignedTo       string  `json:"assigned_to"`
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// JobCardUnassignedPayload payload.
type JobCardUnassignedPayload struct {
	JobNumber        string `json:"job_number"`
	PreviousAssignee string `json:"previous_assignee"`
	Reason           string `json:"reason,omitempty"`
}

// JobCardStatusChangedPayload payload.
type JobCardStatusChangedPayload struct {
	JobNumber string           `json:"job_number"`
	OldStatus domain.JobStatus `json:"old_status"`
	NewStatus domain.JobStatus `json:"new_status"`
	Reason    string           `json:"reason,omitempty"`
}

// JobCardCompletedPayload payload.
type JobCardCompletedPayload struct {
	JobNumber             string    `json:"job_number"`
	CompletedAt           time.Time `json:"completed_at"`
	ActualDurationMinutes *int      `json:"actual_duration_minutes,omitempty"`
}
