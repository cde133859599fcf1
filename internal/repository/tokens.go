package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"greenmart/api/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (user_id, refresh_token, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		token.UserID,
		token.Token,
		token.UserAgent,
		token.ExpiresAt,
	)
	return err
}

// DeleteByToken reports whether a row was actually removed, so the caller can
// tell a fresh rotation apart from a replayed token.
func (r *TokenRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	const query = `DELETE FROM refresh_tokens WHERE refresh_token = $1`
	cmd, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
