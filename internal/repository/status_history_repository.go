package repository

import (
	"context"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// StatusHistoryRepository stores job card status audit entries.
type StatusHistoryRepository interface {
	Create(ctx context.Context, history *domain.JobCardStatusHistory) error
	ListByJobCard(ctx context.Context, jobCardID string) ([]domain.JobCardStatusHistory, error)
}

type statusHistoryRepository struct {
	db DBTX
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(db DBTX) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) Create(ctx context.Context, history *domain.JobCardStatusHistory) error {
	const query = `
        INSERT INTO job_card_status_history (job_card_id, from_status, to_status, changed_by, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, changed_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		history.JobCardID,
		history.FromStatus,
		history.ToStatus,
		history.ChangedBy,
		history.Reason,
	).Scan(&history.ID, &history.ChangedAt)
}

func (r *statusHistoryRepository) ListByJobCard(ctx context.Context, jobCardID string) ([]domain.JobCardStatusHistory, error) {
	const query = `
        SELECT id, job_card_id, from_status, to_status, changed_by, reason, changed_at
        FROM job_card_status_history WHERE job_card_id=$1 ORDER BY changed_at ASC`
	rows, err := conn(ctx, r.db).Query(ctx, query, jobCardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.JobCardStatusHistory
	for rows.Next() {
		var history domain.JobCardStatusHistory
		if err := rows.Scan(
			&history.ID,
			&history.JobCardID,
			&history.FromStatus,
			&history.ToStatus,
			&history.ChangedBy,
			&history.Reason,
			&history.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
