package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// UserRoleRepository manages role grants.
type UserRoleRepository interface {
	Assign(ctx context.Context, grant *domain.UserRole) error
	FindActive(ctx context.Context, userID, roleID string) (*domain.UserRole, error)
	UpdateStatus(ctx context.Context, id string, status domain.UserRoleStatus) error
	ListActiveRoleNames(ctx context.Context, userID string) ([]string, error)
	ListByUser(ctx context.Context, userID string) ([]domain.UserRole, error)
}

type userRoleRepository struct {
	db DBTX
}

// NewUserRoleRepository constructs a UserRoleRepository.
func NewUserRoleRepository(db DBTX) UserRoleRepository {
	return &userRoleRepository{db: db}
}

func (r *userRoleRepository) Assign(ctx context.Context, grant *domain.UserRole) error {
	const query = `
        INSERT INTO user_roles (user_id, role_id, assigned_by, expires_at, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, assigned_at, created_at, updated_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		grant.UserID,
		grant.RoleID,
		grant.AssignedBy,
		grant.ExpiresAt,
		grant.Status,
	).Scan(&grant.ID, &grant.AssignedAt, &grant.CreatedAt, &grant.UpdatedAt)
}

func (r *userRoleRepository) FindActive(ctx context.Context, userID, roleID string) (*domain.UserRole, error) {
	const query = `
        SELECT ur.id, ur.user_id, ur.role_id, r.name, ur.assigned_by, ur.assigned_at, ur.expires_at,
               ur.status, ur.created_at, ur.updated_at
        FROM user_roles ur JOIN roles r ON r.id = ur.role_id
        WHERE ur.user_id=$1 AND ur.role_id=$2 AND ur.status='ACTIVE'`
	return scanUserRole(conn(ctx, r.db).QueryRow(ctx, query, userID, roleID))
}

func (r *userRoleRepository) UpdateStatus(ctx context.Context, id string, status domain.UserRoleStatus) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `UPDATE user_roles SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRoleRepository) ListActiveRoleNames(ctx context.Context, userID string) ([]string, error) {
	const query = `
        SELECT r.name
        FROM user_roles ur JOIN roles r ON r.id = ur.role_id
        WHERE ur.user_id=$1 AND ur.status='ACTIVE' AND r.status='ACTIVE'
          AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
        ORDER BY r.name`
	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *userRoleRepository) ListByUser(ctx context.Context, userID string) ([]domain.UserRole, error) {
	const query = `
        SELECT ur.id, ur.user_id, ur.role_id, r.name, ur.assigned_by, ur.assigned_at, ur.expires_at,
               ur.status, ur.created_at, ur.updated_at
        FROM user_roles ur JOIN roles r ON r.id = ur.role_id
        WHERE ur.user_id=$1
        ORDER BY ur.assigned_at DESC`
	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserRole
	for rows.Next() {
		grant, err := scanUserRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *grant)
	}
	return result, rows.Err()
}

func scanUserRole(row pgx.Row) (*domain.UserRole, error) {
	var grant domain.UserRole
	if err := row.Scan(
		&grant.ID,
		&grant.UserID,
		&grant.RoleID,
		&grant.RoleName,
		&grant.AssignedBy,
		&grant.AssignedAt,
		&grant.ExpiresAt,
		&grant.Status,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &grant, nil
}
