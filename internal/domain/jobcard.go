package domain

import "time"

// JobStatus enumerates lifecycle states for job cards.
type JobStatus string

const (
	JobStatusDraft          JobStatus = "DRAFT"
	JobStatusReady          JobStatus = "READY"
	JobStatusAssigned       JobStatus = "ASSIGNED"
	JobStatusInProgress     JobStatus = "IN_PROGRESS"
	JobStatusPendingReview  JobStatus = "PENDING_REVIEW"
	JobStatusCompleted      JobStatus = "COMPLETED"
	JobStatusCancelled      JobStatus = "CANCELLED"
	JobStatusReworkRequired JobStatus = "REWORK_REQUIRED"
)

// AllJobStatuses lists every job status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusDraft,
	JobStatusReady,
	JobStatusAssigned,
	JobStatusInProgress,
	JobStatusPendingReview,
	JobStatusCompleted,
	JobStatusCancelled,
	JobStatusReworkRequired,
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusDraft:          {JobStatusReady, JobStatusCancelled},
	JobStatusReady:          {JobStatusAssigned, JobStatusCancelled},
	JobStatusAssigned:       {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress:     {JobStatusPendingReview, JobStatusCancelled},
	JobStatusPendingReview:  {JobStatusCompleted, JobStatusReworkRequired},
	JobStatusReworkRequired: {JobStatusInProgress, JobStatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s.
func (s JobStatus) NextStatuses() []JobStatus {
	out := make([]JobStatus, len(jobTransitions[s]))
	copy(out, jobTransitions[s])
	return out
}

// IsFinal reports terminal statuses.
func (s JobStatus) IsFinal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// IsActive reports statuses where work is assigned or underway.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusAssigned, JobStatusInProgress, JobStatusPendingReview:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DisplayName returns the label shown in views.
func (s JobStatus) DisplayName() string {
	switch s {
	case JobStatusDraft:
		return "Draft"
	case JobStatusReady:
		return "Ready"
	case JobStatusAssigned:
		return "Assigned"
	case JobStatusInProgress:
		return "In Progress"
	case JobStatusPendingReview:
		return "Pending Review"
	case JobStatusCompleted:
		return "Completed"
	case JobStatusCancelled:
		return "Cancelled"
	case JobStatusReworkRequired:
		return "Rework Required"
	}
	return string(s)
}

// ColorCode maps the status to a badge color.
func (s JobStatus) ColorCode() string {
	switch s {
	case JobStatusDraft:
		return "gray"
	case JobStatusReady:
		return "blue"
	case JobStatusAssigned:
		return "indigo"
	case JobStatusInProgress:
		return "yellow"
	case JobStatusPendingReview:
		return "purple"
	case JobStatusCompleted:
		return "green"
	case JobStatusCancelled:
		return "red"
	case JobStatusReworkRequired:
		return "orange"
	}
	return "gray"
}

// Priority enumerates job urgency.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Weight orders priorities, higher is more urgent. Unknown values weigh 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Weight() > 0
}

// JobCard is the aggregate for a unit of maintenance work.
type JobCard struct {
	ID                       string
	JobNumber                string
	TemplateID               string
	Title                    string
	Description              string
	Status                   JobStatus
	Priority                 Priority
	CreatedBy                string
	AssignedTo               *string
	EstimatedDurationMinutes *int
	ActualDurationMinutes    *int
	TargetCompletionDate     *time.Time
	StartedAt                *time.Time
	CompletedAt              *time.Time
	DynamicFields            map[string]any
	Version                  int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// CanBeAssigned reports whether the card may receive an assignee.
func (j *JobCard) CanBeAssigned() bool {
	return j.Status == JobStatusDraft || j.Status == JobStatusReady
}

// CanBeStarted reports whether work can begin.
func (j *JobCard) CanBeStarted() bool {
	return j.Status == JobStatusAssigned && j.AssignedTo != nil
}

// IsOverdue reports whether the target date has passed on an unfinished card.
func (j *JobCard) IsOverdue(now time.Time) bool {
	if j.TargetCompletionDate == nil || j.Status.IsFinal() {
		return false
	}
	return j.TargetCompletionDate.Before(now)
}

// IsAssignedTo reports whether userID currently holds the card.
func (j *JobCard) IsAssignedTo(userID string) bool {
	return j.AssignedTo != nil && *j.AssignedTo == userID
}

// JobCardTemplate describes a reusable kind of job.
type JobCardTemplate struct {
	ID          string
	Name        string
	Code        string
	Description string
	Category    string
	Version     int
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobCardAssignment is one assignment record for a job card.
type JobCardAssignment struct {
	ID                 string
	JobCardID          string
	AssignedTo         string
	AssignedBy         string
	Reason             string
	AssignedAt         time.Time
	UnassignedAt       *time.Time
	UnassignmentReason string
	IsActive           bool
}
