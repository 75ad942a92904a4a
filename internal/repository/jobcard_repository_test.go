package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/specification"
)

var jobCardColumnNames = []string{
	"id", "job_number", "template_id", "title", "description", "status", "priority", "created_by", "assigned_to",
	"estimated_duration_minutes", "actual_duration_minutes", "target_completion_date", "started_at", "completed_at",
	"dynamic_fields", "version", "created_at", "updated_at",
}

func jobCardRow(id string, status domain.JobStatus, now time.Time) []any {
	return []any{
		id, "JC-2026-0001", "tpl-1", "Replace pump seal", "", status, domain.PriorityHigh, "user-1", (*string)(nil),
		(*int)(nil), (*int)(nil), (*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil),
		map[string]any{}, 3, now, now,
	}
}

func updateArgs(card *domain.JobCard) []any {
	return []any{
		card.Title, card.Description, card.Status, card.Priority, card.AssignedTo,
		card.EstimatedDurationMinutes, card.ActualDurationMinutes, card.TargetCompletionDate,
		card.StartedAt, card.CompletedAt, card.DynamicFields, card.ID, card.Version,
	}
}

func TestJobCardRepositoryUpdateVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	card := &domain.JobCard{ID: "jc-1", Status: domain.JobStatusReady, Priority: domain.PriorityLow, Version: 2}

	mock.ExpectQuery(`UPDATE job_cards SET`).
		WithArgs(updateArgs(card)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM job_cards WHERE id=\$1\)`).
		WithArgs("jc-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err = repo.Update(context.Background(), card)
	assert.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryUpdateMissingCard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	card := &domain.JobCard{ID: "missing", Version: 0}

	mock.ExpectQuery(`UPDATE job_cards SET`).
		WithArgs(updateArgs(card)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, repo.Update(context.Background(), card), pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryUpdateBumpsVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	now := time.Now().UTC()
	card := &domain.JobCard{ID: "jc-1", Version: 2}

	mock.ExpectQuery(`UPDATE job_cards SET`).
		WithArgs(updateArgs(card)...).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(3, now))

	require.NoError(t, repo.Update(context.Background(), card))
	assert.Equal(t, 3, card.Version)
	assert.Equal(t, now, card.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryFindPageUsesSpecification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	now := time.Now().UTC()
	spec := specification.And(specification.HasStatus(domain.JobStatusReady), specification.HasAssignedTo("tech-1"))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM job_cards WHERE \(status IN \(\$1\) AND assigned_to = \$2\)`).
		WithArgs(domain.JobStatusReady, "tech-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(21)))
	mock.ExpectQuery(`FROM job_cards WHERE \(status IN \(\$1\) AND assigned_to = \$2\) ORDER BY created_at DESC LIMIT 20 OFFSET 20`).
		WithArgs(domain.JobStatusReady, "tech-1").
		WillReturnRows(pgxmock.NewRows(jobCardColumnNames).AddRow(jobCardRow("jc-21", domain.JobStatusReady, now)...))

	cards, total, err := repo.FindPage(context.Background(), spec, Page{Number: 1, Size: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 21, total)
	require.Len(t, cards, 1)
	assert.Equal(t, "jc-21", cards[0].ID)
	assert.Equal(t, domain.PriorityHigh, cards[0].Priority)
	assert.Nil(t, cards[0].AssignedTo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryCountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM job_cards GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(domain.JobStatusDraft, int64(2)).
			AddRow(domain.JobStatusCompleted, int64(5)))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.JobStatus]int64{domain.JobStatusDraft: 2, domain.JobStatusCompleted: 5}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	mock.ExpectExec(`DELETE FROM job_cards WHERE id=\$1`).
		WithArgs("jc-9").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "jc-9"), pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobCardRepositoryMaxJobSequence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewJobCardRepository(mock)
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(CAST\(SUBSTRING\(job_number FROM .+\) AS BIGINT\)\), 0\)\s+FROM job_cards\s+WHERE job_number ~ \$1`).
		WithArgs(`(^|-)JC-2026-\d+$`).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(int64(41)))

	seq, err := repo.MaxJobSequence(context.Background(), "JC", 2026)
	require.NoError(t, err)
	assert.EqualValues(t, 41, seq)
	require.NoError(t, mock.ExpectationsWereMet())
}
