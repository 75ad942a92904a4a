package dto

import (
	"time"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// CreateJobCardRequest payload.
type CreateJobCardRequest struct {
	TemplateID               string          `json:"templateId" validate:"required"`
	Title                    string          `json:"title" validate:"required,max=200"`
	Description              string          `json:"description"`
	Priority                 domain.Priority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	EstimatedDurationMinutes *int            `json:"estimatedDurationMinutes" validate:"omitempty,gt=0"`
	TargetCompletionDate     *time.Time      `json:"targetCompletionDate"`
	DynamicFields            map[string]any  `json:"dynamicFields"`
}

// UpdateJobCardRequest is a partial update; omitted fields keep their value.
type UpdateJobCardRequest struct {
	Title                    *string          `json:"title" validate:"omitempty,max=200"`
	Description              *string          `json:"description"`
	Priority                 *domain.Priority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	EstimatedDurationMinutes *int             `json:"estimatedDurationMinutes" validate:"omitempty,gt=0"`
	TargetCompletionDate     *time.Time       `json:"targetCompletionDate"`
	DynamicFields            map[string]any   `json:"dynamicFields"`
	Version                  *int             `json:"version"`
}

// StatusChangeRequest moves a card along the lifecycle.
type StatusChangeRequest struct {
	Status domain.JobStatus `json:"status" validate:"required"`
	Reason string           `json:"reason"`
}

// AssignRequest hands a card to a user.
type AssignRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required"`
	Reason     string `json:"reason"`
}

// OptionalReasonRequest carries an optional reason.
type OptionalReasonRequest struct {
	Reason string `json:"reason"`
}

// JobCardResponse is the API view of a job card.
type JobCardResponse struct {
	ID                       string             `json:"id"`
	JobNumber                string             `json:"jobNumber"`
	TemplateID               string             `json:"templateId"`
	Title                    string             `json:"title"`
	Description              string             `json:"description,omitempty"`
	Status                   domain.JobStatus   `json:"status"`
	StatusDisplayName        string             `json:"statusDisplayName"`
	StatusColor              string             `json:"statusColor"`
	NextStatuses             []domain.JobStatus `json:"nextStatuses"`
	Priority                 domain.Priority    `json:"priority"`
	CreatedBy                string             `json:"createdBy"`
	AssignedTo               *string            `json:"assignedTo,omitempty"`
	EstimatedDurationMinutes *int               `json:"estimatedDurationMinutes,omitempty"`
	ActualDurationMinutes    *int               `json:"actualDurationMinutes,omitempty"`
	TargetCompletionDate     *time.Time         `json:"targetCompletionDate,omitempty"`
	StartedAt                *time.Time         `json:"startedAt,omitempty"`
	CompletedAt              *time.Time         `json:"completedAt,omitempty"`
	Overdue                  bool               `json:"overdue"`
	DynamicFields            map[string]any     `json:"dynamicFields,omitempty"`
	Version                  int                `json:"version"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
}

// NewJobCardResponse maps a card; now decides the overdue flag.
func NewJobCardResponse(c *domain.JobCard, now time.Time) JobCardResponse {
	return JobCardResponse{
		ID:                       c.ID,
		JobNumber:                c.JobNumber,
		TemplateID:               c.TemplateID,
		Title:                    c.Title,
		Description:              c.Description,
		Status:                   c.Status,
		StatusDisplayName:        c.Status.DisplayName(),
		StatusColor:              c.Status.ColorCode(),
		NextStatuses:             c.Status.NextStatuses(),
		Priority:                 c.Priority,
		CreatedBy:                c.CreatedBy,
		AssignedTo:               c.AssignedTo,
		EstimatedDurationMinutes: c.EstimatedDurationMinutes,
		ActualDurationMinutes:    c.ActualDurationMinutes,
		TargetCompletionDate:     c.TargetCompletionDate,
		StartedAt:                c.StartedAt,
		CompletedAt:              c.CompletedAt,
		Overdue:                  c.IsOverdue(now),
		DynamicFields:            c.DynamicFields,
		Version:                  c.Version,
		CreatedAt:                c.CreatedAt,
		UpdatedAt:                c.UpdatedAt,
	}
}

// NewJobCardResponses maps a slice of cards.
func NewJobCardResponses(cards []domain.JobCard, now time.Time) []JobCardResponse {
	out := make([]JobCardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, NewJobCardResponse(&cards[i], now))
	}
	return out
}

// StatusHistoryResponse is one audit entry.
type StatusHistoryResponse struct {
	ID         string            `json:"id"`
	FromStatus *domain.JobStatus `json:"fromStatus,omitempty"`
	ToStatus   domain.JobStatus  `json:"toStatus"`
	ChangedBy  string            `json:"changedBy"`
	Reason     string            `json:"reason,omitempty"`
	ChangedAt  time.Time         `json:"changedAt"`
}

// NewStatusHistoryResponses maps the audit trail.
func NewStatusHistoryResponses(entries []domain.JobCardStatusHistory) []StatusHistoryResponse {
	out := make([]StatusHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, StatusHistoryResponse{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ChangedBy:  e.ChangedBy,
			Reason:     e.Reason,
			ChangedAt:  e.ChangedAt,
		})
	}
	return out
}

// AssignmentResponse is one assignment record.
type AssignmentResponse struct {
	ID                 string     `json:"id"`
	JobCardID          string     `json:"jobCardId"`
	AssignedTo         string     `json:"assignedTo"`
	AssignedBy         string     `json:"assignedBy"`
	Reason             string     `json:"reason,omitempty"`
	AssignedAt         time.Time  `json:"assignedAt"`
	UnassignedAt       *time.Time `json:"unassignedAt,omitempty"`
	UnassignmentReason string     `json:"unassignmentReason,omitempty"`
	Active             bool       `json:"active"`
}

// NewAssignmentResponses maps assignment records.
func NewAssignmentResponses(items []domain.JobCardAssignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AssignmentResponse{
			ID:                 a.ID,
			JobCardID:          a.JobCardID,
			AssignedTo:         a.AssignedTo,
			AssignedBy:         a.AssignedBy,
			Reason:             a.Reason,
			AssignedAt:         a.AssignedAt,
			UnassignedAt:       a.UnassignedAt,
			UnassignmentReason: a.UnassignmentReason,
			Active:             a.IsActive,
		})
	}
	return out
}
