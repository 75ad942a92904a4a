package specification

import (
	"strings"
	"time"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// HasStatus restricts job cards to the given statuses.
func HasStatus(statuses ...domain.JobStatus) Spec {
	return In("status", statuses)
}

// HasAssignedTo restricts to cards currently held by userID.
func HasAssignedTo(userID string) Spec {
	return eqString("assigned_to", userID)
}

// HasCreatedBy restricts to cards created by userID.
func HasCreatedBy(userID string) Spec {
	return eqString("created_by", userID)
}

// HasPriority restricts to the given priorities.
func HasPriority(priorities ...domain.Priority) Spec {
	return In("priority", priorities)
}

// HasTemplateID restricts to cards instantiated from templateID.
func HasTemplateID(templateID string) Spec {
	return eqString("template_id", templateID)
}

// IsOverdue matches unfinished cards whose target date passed before now.
func IsOverdue(now time.Time) Spec {
	return And(
		Before("target_completion_date", now),
		NotIn("status", []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusCancelled}),
	)
}

// CreatedBetween bounds the creation timestamp.
func CreatedBetween(from, to *time.Time) Spec {
	return Between("created_at", from, to)
}

// TargetDateBetween bounds the target completion date.
func TargetDateBetween(from, to *time.Time) Spec {
	return Between("target_completion_date", from, to)
}

// MatchesSearch looks for term in the job number, title and description.
func MatchesSearch(term string) Spec {
	return ILike([]string{"job_number", "title", "description"}, term)
}

func eqString(column, value string) Spec {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return Eq(column, value)
}

// JobCardFilter is the optional criteria accepted by job card listings.
type JobCardFilter struct {
	Statuses    []domain.JobStatus
	Priorities  []domain.Priority
	AssignedTo  string
	CreatedBy   string
	TemplateID  string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	TargetFrom  *time.Time
	TargetTo    *time.Time
	OverdueOnly bool
}

// Spec combines every populated criterion with AND.
func (f JobCardFilter) Spec(now time.Time) Spec {
	var overdue Spec
	if f.OverdueOnly {
		overdue = IsOverdue(now)
	}
	return And(
		HasStatus(f.Statuses...),
		HasPriority(f.Priorities...),
		HasAssignedTo(f.AssignedTo),
		HasCreatedBy(f.CreatedBy),
		HasTemplateID(f.TemplateID),
		MatchesSearch(f.Search),
		CreatedBetween(f.CreatedFrom, f.CreatedTo),
		TargetDateBetween(f.TargetFrom, f.TargetTo),
		overdue,
	)
}
