package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// RoleRepository manages roles.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
}

type roleRepository struct {
	db DBTX
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (name, description, status)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.db).QueryRow(ctx, query, role.Name, role.Description, role.Status).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
}

func (r *roleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	const query = `SELECT id, name, description, status, created_at, updated_at FROM roles WHERE id=$1`
	return scanRole(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	const query = `SELECT id, name, description, status, created_at, updated_at FROM roles WHERE name=$1`
	return scanRole(conn(ctx, r.db).QueryRow(ctx, query, name))
}

func (r *roleRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, name, description, status, created_at, updated_at FROM roles WHERE id = ANY($1) ORDER BY name`
	rows, err := conn(ctx, r.db).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	const query = `SELECT id, name, description, status, created_at, updated_at FROM roles ORDER BY name`
	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.Status,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &role, nil
}

func scanRoles(rows pgx.Rows) ([]domain.Role, error) {
	var result []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *role)
	}
	return result, rows.Err()
}
