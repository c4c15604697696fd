/**
 * @description
 * PostgreSQL implementation of RememberStore. Only the selector and a bcrypt hash of
 * the validator are stored; the user snapshot is kept as JSONB and the bearer
 * token only in sealed form.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/portal-service/internal/domain"
)

const rememberedLoginsSchema = `
CREATE TABLE IF NOT EXISTS remembered_logins (
	selector       TEXT PRIMARY KEY,
	validator_hash TEXT NOT NULL,
	user_data      JSONB NOT NULL,
	sealed_token   BYTEA,
	expires_at     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE remembered_logins ADD COLUMN IF NOT EXISTS sealed_token BYTEA;
CREATE INDEX IF NOT EXISTS idx_remembered_logins_expires_at ON remembered_logins (expires_at);
`

// PostgresRememberRepository stores remember-me credentials in postgres.
type PostgresRememberRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRememberRepository(db *pgxpool.Pool) *PostgresRememberRepository {
	return &PostgresRememberRepository{db: db}
}

// EnsureSchema creates the remembered_logins table when missing.
func (r *PostgresRememberRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, rememberedLoginsSchema); err != nil {
		return fmt.Errorf("failed to ensure remembered_logins schema: %w", err)
	}
	return nil
}

func (r *PostgresRememberRepository) Save(ctx context.Context, login domain.RememberedLogin) error {
	userData, err := json.Marshal(login.User)
	if err != nil {
		return fmt.Errorf("failed to encode remembered user: %w", err)
	}
	createdAt := login.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO remembered_logins (selector, validator_hash, user_data, sealed_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (selector) DO UPDATE
		SET validator_hash = EXCLUDED.validator_hash,
			user_data = EXCLUDED.user_data,
			sealed_token = EXCLUDED.sealed_token,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.Exec(ctx, query, login.Selector, login.ValidatorHash, userData, login.SealedToken, login.ExpiresAt, createdAt); err != nil {
		return fmt.Errorf("failed to save remembered login: %w", err)
	}
	return nil
}

func (r *PostgresRememberRepository) FindBySelector(ctx context.Context, selector string) (*domain.RememberedLogin, error) {
	var (
		login    domain.RememberedLogin
		userData []byte
	)
	query := `SELECT selector, validator_hash, user_data, sealed_token, expires_at, created_at FROM remembered_logins WHERE selector = $1`
	err := r.db.QueryRow(ctx, query, selector).Scan(&login.Selector, &login.ValidatorHash, &userData, &login.SealedToken, &login.ExpiresAt, &login.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(userData, &login.User); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return &login, nil
}

func (r *PostgresRememberRepository) DeleteBySelector(ctx context.Context, selector string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM remembered_logins WHERE selector = $1`, selector)
	return err
}

func (r *PostgresRememberRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM remembered_logins WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
