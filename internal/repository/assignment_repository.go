package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// AssignmentRepository stores job card assignment records.
type AssignmentRepository interface {
	Create(ctx context.Context, a *domain.JobCardAssignment) error
	FindActiveByJobCard(ctx context.Context, jobCardID string) (*domain.JobCardAssignment, error)
	Deactivate(ctx context.Context, id, reason string) error
	ListByJobCard(ctx context.Context, jobCardID string) ([]domain.JobCardAssignment, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.JobCardAssignment, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `id, job_card_id, assigned_to, assigned_by, reason, assigned_at, unassigned_at, unassignment_reason, is_active`

func (r *assignmentRepository) Create(ctx context.Context, a *domain.JobCardAssignment) error {
	const query = `
        INSERT INTO job_card_assignments (job_card_id, assigned_to, assigned_by, reason, is_active)
        VALUES ($1,$2,$3,$4,TRUE)
        RETURNING id, assigned_at`
	a.IsActive = true
	return conn(ctx, r.db).QueryRow(ctx, query,
		a.JobCardID,
		a.AssignedTo,
		a.AssignedBy,
		a.Reason,
	).Scan(&a.ID, &a.AssignedAt)
}

func (r *assignmentRepository) FindActiveByJobCard(ctx context.Context, jobCardID string) (*domain.JobCardAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM job_card_assignments
        WHERE job_card_id=$1 AND is_active=TRUE ORDER BY assigned_at DESC LIMIT 1`
	return scanAssignment(conn(ctx, r.db).QueryRow(ctx, query, jobCardID))
}

func (r *assignmentRepository) Deactivate(ctx context.Context, id, reason string) error {
	const query = `
        UPDATE job_card_assignments SET is_active=FALSE, unassigned_at=NOW(), unassignment_reason=$1
        WHERE id=$2 AND is_active=TRUE`
	cmd, err := conn(ctx, r.db).Exec(ctx, query, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) ListByJobCard(ctx context.Context, jobCardID string) ([]domain.JobCardAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM job_card_assignments
        WHERE job_card_id=$1 ORDER BY assigned_at DESC`
	return r.list(ctx, query, jobCardID)
}

func (r *assignmentRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.JobCardAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM job_card_assignments
        WHERE assigned_to=$1 AND is_active=TRUE ORDER BY assigned_at DESC`
	return r.list(ctx, query, userID)
}

func (r *assignmentRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM job_card_assignments WHERE assigned_to=$1 AND is_active=TRUE`, userID).Scan(&count)
	return count, err
}

func (r *assignmentRepository) list(ctx context.Context, query string, arg any) ([]domain.JobCardAssignment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.JobCardAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func scanAssignment(row pgx.Row) (*domain.JobCardAssignment, error) {
	var a domain.JobCardAssignment
	if err := row.Scan(
		&a.ID,
		&a.JobCardID,
		&a.AssignedTo,
		&a.AssignedBy,
		&a.Reason,
		&a.AssignedAt,
		&a.UnassignedAt,
		&a.UnassignmentReason,
		&a.IsActive,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
