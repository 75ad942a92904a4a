package specification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

func TestBuildEmpty(t *testing.T) {
	clause, args := Build(nil, 1)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)

	clause, args = Build(And(nil, Or(), Not(nil), ILike([]string{"title"}, "  ")), 3)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)
}

func TestBuildSingleSpecIsUnwrapped(t *testing.T) {
	clause, args := Build(And(Eq("status", "READY"), nil), 1)
	assert.Equal(t, "status = $1", clause)
	assert.Equal(t, []any{"READY"}, args)
}

func TestBuildNumbersFromStartIndex(t *testing.T) {
	clause, args := Build(And(Eq("a", 1), In("b", []int{2, 3})), 4)
	assert.Equal(t, "(a = $4 AND b IN ($5,$6))", clause)
	assert.Equal(t, []any{1, 2, 3}, args)
}

func TestBetweenBounds(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	clause, args := Build(Between("created_at", &from, &to), 1)
	assert.Equal(t, "created_at BETWEEN $1 AND $2", clause)
	assert.Equal(t, []any{from, to}, args)

	clause, _ = Build(Between("created_at", &from, nil), 1)
	assert.Equal(t, "created_at >= $1", clause)

	clause, _ = Build(Between("created_at", nil, &to), 1)
	assert.Equal(t, "created_at <= $1", clause)

	assert.Nil(t, Between("created_at", nil, nil))
}

func TestOrNotAndRaw(t *testing.T) {
	spec := Or(Not(Eq("a", "x")), Raw("b > ? AND c < ?", 1, 9))
	clause, args := Build(spec, 1)
	assert.Equal(t, "(NOT (a = $1) OR b > $2 AND c < $3)", clause)
	assert.Equal(t, []any{"x", 1, 9}, args)
}

func TestILikeSharesPlaceholder(t *testing.T) {
	clause, args := Build(MatchesSearch(" pump "), 1)
	assert.Equal(t, "(job_number ILIKE $1 OR title ILIKE $1 OR description ILIKE $1)", clause)
	assert.Equal(t, []any{"%pump%"}, args)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clause, args := Build(IsOverdue(now), 1)
	assert.Equal(t, "(target_completion_date < $1 AND status NOT IN ($2,$3))", clause)
	assert.Equal(t, []any{now, domain.JobStatusCompleted, domain.JobStatusCancelled}, args)
}

func TestJobCardFilterSpec(t *testing.T) {
	f := JobCardFilter{
		Statuses:   []domain.JobStatus{domain.JobStatusReady},
		AssignedTo: "u-1",
		Search:     "valve",
	}
	clause, args := Build(f.Spec(time.Now()), 1)
	assert.Equal(t, "(status IN ($1) AND assigned_to = $2 AND (job_number ILIKE $3 OR title ILIKE $3 OR description ILIKE $3))", clause)
	assert.Equal(t, []any{domain.JobStatusReady, "u-1", "%valve%"}, args)

	clause, args = Build(JobCardFilter{}.Spec(time.Now()), 1)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)
}
