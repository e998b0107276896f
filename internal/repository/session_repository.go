package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"convflow/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.RefreshSession) error {
	const query = `
		INSERT INTO refresh_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt,
	)
	return err
}

// ConsumeByHash deletes the unexpired session matching the hash and returns
// it. The DELETE is the synchronization primitive for rotation-on-use: when
// two refresh calls race on the same token, only one observes a row; the
// other gets ErrSessionNotFound.
func (r *SessionRepository) ConsumeByHash(ctx context.Context, tokenHash []byte) (models.RefreshSession, error) {
	const query = `
		DELETE FROM refresh_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
		RETURNING id, user_id, token_hash, expires_at, created_at
	`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	var session models.RefreshSession
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshSession{}, ErrSessionNotFound
		}
		return models.RefreshSession{}, err
	}
	return session, nil
}

// DeleteByHash removes the matching session regardless of expiry and
// reports how many rows went away. Zero is not an error; logout is
// idempotent.
func (r *SessionRepository) DeleteByHash(ctx context.Context, tokenHash []byte) (int64, error) {
	const query = `DELETE FROM refresh_sessions WHERE token_hash = $1`
	cmd, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	const query = `DELETE FROM refresh_sessions WHERE user_id = $1`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// DeleteExpired reclaims lapsed sessions. Expiry is otherwise lazy: an
// expired row is harmless because ConsumeByHash filters on expires_at.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_sessions WHERE expires_at < NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
