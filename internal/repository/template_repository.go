package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// TemplateRepository manages job card template persistence.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *domain.JobCardTemplate) error
	GetByID(ctx context.Context, id string) (*domain.JobCardTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]domain.JobCardTemplate, error)
}

type templateRepository struct {
	db DBTX
}

// NewTemplateRepository builds the repository.
func NewTemplateRepository(db DBTX) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tpl *domain.JobCardTemplate) error {
	const query = `
        INSERT INTO job_card_templates (name, code, description, category, version, is_active, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		tpl.Name,
		tpl.Code,
		tpl.Description,
		tpl.Category,
		tpl.Version,
		tpl.IsActive,
		tpl.CreatedBy,
	).Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt)
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*domain.JobCardTemplate, error) {
	const query = `
        SELECT id, name, code, description, category, version, is_active, created_by, created_at, updated_at
        FROM job_card_templates WHERE id=$1`
	return scanTemplate(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *templateRepository) List(ctx context.Context, activeOnly bool) ([]domain.JobCardTemplate, error) {
	const query = `
        SELECT id, name, code, description, category, version, is_active, created_by, created_at, updated_at
        FROM job_card_templates WHERE ($1 = FALSE OR is_active = TRUE) ORDER BY name`
	rows, err := conn(ctx, r.db).Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.JobCardTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tpl)
	}
	return result, rows.Err()
}

func scanTemplate(row pgx.Row) (*domain.JobCardTemplate, error) {
	var tpl domain.JobCardTemplate
	if err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Code,
		&tpl.Description,
		&tpl.Category,
		&tpl.Version,
		&tpl.IsActive,
		&tpl.CreatedBy,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tpl, nil
}
