package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// UserRepository defines persistence access for application users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error)
	ListByStatus(ctx context.Context, status domain.UserStatus, page Page) ([]domain.User, int64, error)
	List(ctx context.Context, page Page) ([]domain.User, int64, error)
	CountByStatus(ctx context.Context, status domain.UserStatus) (int64, error)
	RecordRejection(ctx context.Context, rejection *domain.UserRejection) error
	TouchLastLogin(ctx context.Context, id string) error
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, external_subject, email, first_name, last_name, password_hash, phone_number,
               employee_id, department, status, last_login_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (external_subject, email, first_name, last_name, password_hash, phone_number, employee_id, department, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		user.ExternalSubject,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.PhoneNumber,
		user.EmployeeID,
		user.Department,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET external_subject=$1, first_name=$2, last_name=$3, password_hash=$4, phone_number=$5,
            employee_id=$6, department=$7, status=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`

	return conn(ctx, r.db).QueryRow(ctx, query,
		user.ExternalSubject,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.PhoneNumber,
		user.EmployeeID,
		user.Department,
		user.Status,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	return scanUser(conn(ctx, r.db).QueryRow(ctx, query, email))
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email)=LOWER($1))`
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

func (r *userRepository) ExistsByEmployeeID(ctx context.Context, employeeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE employee_id=$1)`
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, query, employeeID).Scan(&exists)
	return exists, err
}

func (r *userRepository) ListByStatus(ctx context.Context, status domain.UserStatus, page Page) ([]domain.User, int64, error) {
	total, err := r.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE status=$1 ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		userColumns, page.Limit(), page.Offset())
	rows, err := conn(ctx, r.db).Query(ctx, query, status)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users, err := scanUsers(rows)
	return users, total, err
}

func (r *userRepository) List(ctx context.Context, page Page) ([]domain.User, int64, error) {
	var total int64
	if err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status <> 'DELETED'`).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE status <> 'DELETED' ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		userColumns, page.Limit(), page.Offset())
	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users, err := scanUsers(rows)
	return users, total, err
}

func (r *userRepository) CountByStatus(ctx context.Context, status domain.UserStatus) (int64, error) {
	var total int64
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status=$1`, status).Scan(&total)
	return total, err
}

func (r *userRepository) RecordRejection(ctx context.Context, rejection *domain.UserRejection) error {
	const query = `
        INSERT INTO user_rejections (user_id, rejected_by, reason, original_status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, rejected_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		rejection.UserID,
		rejection.RejectedBy,
		rejection.Reason,
		rejection.OriginalStatus,
	).Scan(&rejection.ID, &rejection.RejectedAt)
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string) error {
	cmd, err := conn(ctx, r.db).Exec(ctx, `UPDATE users SET last_login_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.ExternalSubject,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.PhoneNumber,
		&user.EmployeeID,
		&user.Department,
		&user.Status,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
