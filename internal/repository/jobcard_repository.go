package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/specification"
)

// ErrVersionConflict is returned when an update carries a stale version.
var ErrVersionConflict = errors.New("repository: job card version conflict")

// JobCardRepository encapsulates job card persistence.
type JobCardRepository interface {
	Create(ctx context.Context, card *domain.JobCard) error
	Update(ctx context.Context, card *domain.JobCard) error
	GetByID(ctx context.Context, id string) (*domain.JobCard, error)
	GetByJobNumber(ctx context.Context, jobNumber string) (*domain.JobCard, error)
	Delete(ctx context.Context, id string) error
	FindPage(ctx context.Context, spec specification.Spec, page Page) ([]domain.JobCard, int64, error)
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error)
	AverageCompletionMinutes(ctx context.Context) (*float64, error)
	ListExceedingEstimate(ctx context.Context) ([]domain.JobCard, error)
	MaxJobSequence(ctx context.Context, prefix string, year int) (int64, error)
}

type jobCardRepository struct {
	db DBTX
}

// NewJobCardRepository instantiates repository.
func NewJobCardRepository(db DBTX) JobCardRepository {
	return &jobCardRepository{db: db}
}

const jobCardColumns = `id, job_number, template_id, title, description, status, priority, created_by, assigned_to,
               estimated_duration_minutes, actual_duration_minutes, target_completion_date, started_at, completed_at,
               dynamic_fields, version, created_at, updated_at`

func (r *jobCardRepository) Create(ctx context.Context, card *domain.JobCard) error {
	const query = `
        INSERT INTO job_cards (job_number, template_id, title, description, status, priority, created_by, assigned_to,
            estimated_duration_minutes, target_completion_date, dynamic_fields)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, version, created_at, updated_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		card.JobNumber,
		card.TemplateID,
		card.Title,
		card.Description,
		card.Status,
		card.Priority,
		card.CreatedBy,
		card.AssignedTo,
		card.EstimatedDurationMinutes,
		card.TargetCompletionDate,
		card.DynamicFields,
	).Scan(&card.ID, &card.Version, &card.CreatedAt, &card.UpdatedAt)
}

// Update persists card when its version matches the stored one and bumps the version.
func (r *jobCardRepository) Update(ctx context.Context, card *domain.JobCard) error {
	const query = `
        UPDATE job_cards SET title=$1, description=$2, status=$3, priority=$4, assigned_to=$5,
            estimated_duration_minutes=$6, actual_duration_minutes=$7, target_completion_date=$8,
            started_at=$9, completed_at=$10, dynamic_fields=$11, version=version+1, updated_at=NOW()
        WHERE id=$12 AND version=$13
        RETURNING version, updated_at`
	db := conn(ctx, r.db)
	err := db.QueryRow(ctx, query,
		card.Title,
		card.Description,
		card.Status,
		card.Priority,
		card.AssignedTo,
		card.EstimatedDurationMinutes,
		card.ActualDurationMinutes,
		card.TargetCompletionDate,
		card.StartedAt,
		card.CompletedAt,
		card.DynamicFields,
		card.ID,
		card.Version,
	).Scan(&card.Version, &card.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM job_cards WHERE id=$1)`, card.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionConflict
	}
	return pgx.ErrNoRows
}

func (r *jobCardRepository) GetByID(ctx context.Context, id string) (*domain.JobCard, error) {
	query := `SELECT ` + jobCardColumns + ` FROM job_cards WHERE id=$1`
	return scanJobCard(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *jobCardRepository) GetByJobNumber(ctx context.Context, jobNumber string) (*domain.JobCard, error) {
	query := `SELECT ` + jobCardColumns + ` FROM job_cards WHERE job_number=$1`
	return scanJobCard(conn(ctx, r.db).QueryRow(ctx, query, jobNumber))
}

func (r *jobCardRepository) Delete(ctx context.Context, id string) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM job_cards WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *jobCardRepository) FindPage(ctx context.Context, spec specification.Spec, page Page) ([]domain.JobCard, int64, error) {
	where, args := specification.Build(spec, 1)
	db := conn(ctx, r.db)

	var total int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM job_cards WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM job_cards WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		jobCardColumns, where, page.Limit(), page.Offset())
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	cards, err := scanJobCards(rows)
	return cards, total, err
}

func (r *jobCardRepository) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT status, COUNT(*) FROM job_cards GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.JobStatus]int64{}
	for rows.Next() {
		var status domain.JobStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// AverageCompletionMinutes returns nil when no completed card has a recorded duration.
func (r *jobCardRepository) AverageCompletionMinutes(ctx context.Context) (*float64, error) {
	const query = `
        SELECT AVG(actual_duration_minutes)::float8 FROM job_cards
        WHERE status='COMPLETED' AND actual_duration_minutes IS NOT NULL`
	var avg *float64
	if err := conn(ctx, r.db).QueryRow(ctx, query).Scan(&avg); err != nil {
		return nil, err
	}
	return avg, nil
}

func (r *jobCardRepository) ListExceedingEstimate(ctx context.Context) ([]domain.JobCard, error) {
	query := `SELECT ` + jobCardColumns + ` FROM job_cards
        WHERE actual_duration_minutes IS NOT NULL AND estimated_duration_minutes IS NOT NULL
          AND actual_duration_minutes > estimated_duration_minutes
        ORDER BY (actual_duration_minutes - estimated_duration_minutes) DESC`
	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobCards(rows)
}

// MaxJobSequence returns the highest trailing sequence among numbers of the
// form [CAT-]<prefix>-<year>-<seq>, or 0 when there are none.
func (r *jobCardRepository) MaxJobSequence(ctx context.Context, prefix string, year int) (int64, error) {
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(job_number FROM '(\d+)$') AS BIGINT)), 0)
        FROM job_cards
        WHERE job_number ~ $1`
	pattern := fmt.Sprintf(`(^|-)%s-%d-\d+$`, regexp.QuoteMeta(prefix), year)
	var seq int64
	err := conn(ctx, r.db).QueryRow(ctx, query, pattern).Scan(&seq)
	return seq, err
}

func scanJobCard(row pgx.Row) (*domain.JobCard, error) {
	var card domain.JobCard
	if err := row.Scan(
		&card.ID,
		&card.JobNumber,
		&card.TemplateID,
		&card.Title,
		&card.Description,
		&card.Status,
		&card.Priority,
		&card.CreatedBy,
		&card.AssignedTo,
		&card.EstimatedDurationMinutes,
		&card.ActualDurationMinutes,
		&card.TargetCompletionDate,
		&card.StartedAt,
		&card.CompletedAt,
		&card.DynamicFields,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &card, nil
}

func scanJobCards(rows pgx.Rows) ([]domain.JobCard, error) {
	var result []domain.JobCard
	for rows.Next() {
		card, err := scanJobCard(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *card)
	}
	return result, rows.Err()
}
