package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo owns the refresh_tokens table. Only SHA-256 hashes of refresh
// tokens reach the database, so a leaked table cannot mint sessions.
// Liveness (not revoked, not expired) is enforced inside the queries; every
// dead token reads as sql.ErrNoRows and the auth layer maps that to
// "session expired".
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Insert records a freshly issued refresh token hash for a user.
func (r *TokenRepo) Insert(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash, expiresAt)
	return err
}

// Lookup resolves a live token hash to its owning user.
func (r *TokenRepo) Lookup(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`,
		tokenHash).Scan(&userID)
	return userID, err
}

// Rotate retires oldHash and records newHash for the same user in one
// transaction. When oldHash is no longer live (already rotated or revoked by
// a concurrent request) nothing is written and sql.ErrNoRows is returned, so
// a replayed refresh token never mints a second session.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, userID uint64, newHash string, expiresAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()`,
		oldHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, newHash, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Revoke retires a single token hash. Revoking an already-dead hash is a
// no-op, not an error, so sign-out stays idempotent.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		 WHERE token_hash = ? AND revoked_at IS NULL`,
		tokenHash)
	return err
}
