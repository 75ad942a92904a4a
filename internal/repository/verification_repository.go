package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// VerificationRepository manages email verification codes.
type VerificationRepository interface {
	Create(ctx context.Context, v *domain.EmailVerification) error
	GetLatestForUser(ctx context.Context, userID string) (*domain.EmailVerification, error)
	MarkUsed(ctx context.Context, id string) error
}

type verificationRepository struct {
	db DBTX
}

// NewVerificationRepository constructs repository.
func NewVerificationRepository(db DBTX) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *domain.EmailVerification) error {
	const query = `
        INSERT INTO email_verifications (user_id, code, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return conn(ctx, r.db).QueryRow(ctx, query,
		v.UserID,
		v.Code,
		v.ExpiresAt,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *verificationRepository) GetLatestForUser(ctx context.Context, userID string) (*domain.EmailVerification, error) {
	const query = `
        SELECT id, user_id, code, expires_at, used_at, created_at
        FROM email_verifications WHERE user_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var v domain.EmailVerification
	if err := conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(
		&v.ID,
		&v.UserID,
		&v.Code,
		&v.ExpiresAt,
		&v.UsedAt,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `
        UPDATE email_verifications SET used_at=NOW()
        WHERE id=$1 AND used_at IS NULL`
	cmd, err := conn(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
